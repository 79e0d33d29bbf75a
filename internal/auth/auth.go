// Package auth gates requests against three token scopes: an operator
// token, a per-device token map with wildcard fallback, and a narrow
// public-photo token. Constant-time comparison throughout.
package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

// Gate holds the three token scopes the orchestrator checks requests
// against.
type Gate struct {
	OperatorToken    string
	DeviceTokens     map[string]string // device_id -> token, "*" is the wildcard
	HasDeviceTokens  bool              // distinguishes "configured but empty" from "not configured"
	PublicPhotoToken string
}

// LoadDeviceTokens parses the device token map, preferring JSON (a plain
// object of device_id -> token) and falling back to the
// comma-separated "id=token,id2=token2" format. Both formats stay
// accepted so existing deployments keep working.
func LoadDeviceTokens(jsonMap, csvMap string) (map[string]string, bool, error) {
	jsonMap = strings.TrimSpace(jsonMap)
	if jsonMap != "" {
		var tokens map[string]string
		if err := json.Unmarshal([]byte(jsonMap), &tokens); err != nil {
			return nil, false, fmt.Errorf("parse DEVICE_TOKEN_MAP_JSON: %w", err)
		}
		return tokens, true, nil
	}

	csvMap = strings.TrimSpace(csvMap)
	if csvMap == "" {
		return nil, false, nil
	}

	tokens := make(map[string]string)
	for _, pair := range strings.Split(csvMap, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, false, fmt.Errorf("invalid DEVICE_TOKEN_MAP entry %q", pair)
		}
		tokens[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return tokens, true, nil
}

// constantTimeEqual compares two strings in constant time regardless of
// length mismatch.
func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// still run a comparison of equal length to avoid a length-based
		// timing signal distinguishing "wrong length" from "wrong content"
		subtle.ConstantTimeCompare([]byte(a), []byte(a))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// RequireOperator checks the request's bearer/token header against the
// operator token. An empty configured OperatorToken means the operator
// surface is open.
func (g *Gate) RequireOperator(r *http.Request) error {
	if g.OperatorToken == "" {
		return nil
	}
	given := tokenFromRequest(r, "X-Photoframe-Token")
	if !constantTimeEqual(given, g.OperatorToken) {
		return apierr.Auth(fmt.Errorf("invalid or missing operator token"))
	}
	return nil
}

// RequireDevice checks the request's token against the per-device token
// map (exact match, then wildcard). If no device token map is
// configured at all, the operator token is accepted instead, so
// single-device deployments work without per-device secrets.
func (g *Gate) RequireDevice(r *http.Request, deviceID string) error {
	given := tokenFromRequest(r, "X-Photoframe-Token")

	if !g.HasDeviceTokens {
		if g.OperatorToken == "" {
			return nil
		}
		if !constantTimeEqual(given, g.OperatorToken) {
			return apierr.Auth(fmt.Errorf("invalid or missing device token"))
		}
		return nil
	}

	expected, ok := g.DeviceTokens[deviceID]
	if !ok {
		expected, ok = g.DeviceTokens["*"]
	}
	if !ok {
		return apierr.Auth(fmt.Errorf("no token configured for device %q", deviceID))
	}
	if !constantTimeEqual(given, expected) {
		return apierr.Auth(fmt.Errorf("invalid device token"))
	}
	return nil
}

// RequirePublicPhoto checks the request against the public-photo token,
// which may arrive via header or query parameter. If no token is
// configured, the endpoint is disabled and every request is rejected
// with 403 via apierr.Forbidden.
func (g *Gate) RequirePublicPhoto(r *http.Request) error {
	if g.PublicPhotoToken == "" {
		return &apierr.Forbidden{Err: fmt.Errorf("public photo endpoint is disabled")}
	}
	given := r.Header.Get("X-Photoframe-Token")
	if given == "" {
		given = r.URL.Query().Get("token")
	}
	if !constantTimeEqual(given, g.PublicPhotoToken) {
		return apierr.Auth(fmt.Errorf("invalid public photo token"))
	}
	return nil
}

func tokenFromRequest(r *http.Request, headerName string) string {
	if v := r.Header.Get(headerName); v != "" {
		return v
	}
	bearer := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(bearer), "bearer ") {
		return strings.TrimSpace(bearer[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}
