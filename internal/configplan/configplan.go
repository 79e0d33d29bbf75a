// Package configplan validates and range-clamps operator-submitted
// device configuration against a fixed allow-list, and redacts secret
// fields for operator-facing list views.
package configplan

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

// secretKeys are redacted in operator-facing list views.
var secretKeys = map[string]bool{
	"orchestrator_token": true,
	"photo_token":        true,
}

type kind int

const (
	kindInt kind = iota
	kindString
)

type allowedKey struct {
	kind     kind
	min, max int64 // inclusive range for kindInt; ignored for kindString
	maxLen   int   // max string length for kindString
	collapse bool  // display_rotation: non-zero collapses to 2
}

// allowList is the set of keys a device config may carry. Unknown keys
// are silently dropped; known keys are range-clamped.
var allowList = map[string]allowedKey{
	"orchestrator_enabled":          {kind: kindInt, min: 0, max: 1},
	"orchestrator_base_url":         {kind: kindString, maxLen: 1024},
	"orchestrator_token":            {kind: kindString, maxLen: 256},
	"image_url_template":            {kind: kindString, maxLen: 1024},
	"photo_token":                   {kind: kindString, maxLen: 256},
	"interval_minutes":              {kind: kindInt, min: 1, max: 1440},
	"retry_base_minutes":            {kind: kindInt, min: 1, max: 1440},
	"retry_max_minutes":             {kind: kindInt, min: 1, max: 10080},
	"max_failure_before_long_sleep": {kind: kindInt, min: 1, max: 1000},
	"display_rotation":              {kind: kindInt, min: 0, max: 2, collapse: true},
	"color_process_mode":            {kind: kindInt, min: 0, max: 2},
	"dither_mode":                   {kind: kindInt, min: 0, max: 1},
	"six_color_tolerance":           {kind: kindInt, min: 0, max: 64},
	"timezone":                      {kind: kindString, maxLen: 64},
}

// Sanitize validates raw JSON against the allow-list: unknown keys are
// dropped, known keys are range-clamped (or length-truncated for
// strings), and a non-object payload is rejected as a ClientInputError.
// It returns the sanitized object re-marshaled to canonical JSON.
func Sanitize(raw []byte) ([]byte, error) {
	var submitted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &submitted); err != nil {
		return nil, apierr.ClientInput(fmt.Errorf("device config must be a JSON object: %w", err))
	}

	out := make(map[string]interface{})
	for key, rawVal := range submitted {
		rule, known := allowList[key]
		if !known {
			continue
		}
		switch rule.kind {
		case kindInt:
			var n int64
			if err := json.Unmarshal(rawVal, &n); err != nil {
				continue // not an int-shaped value; drop rather than fail the whole request
			}
			if rule.collapse {
				if n != 0 {
					n = 2
				}
			} else {
				n = clampInt64(n, rule.min, rule.max)
			}
			out[key] = n
		case kindString:
			var s string
			if err := json.Unmarshal(rawVal, &s); err != nil {
				continue
			}
			if len(s) > rule.maxLen {
				s = s[:rule.maxLen]
			}
			out[key] = s
		}
	}

	return json.Marshal(out)
}

func clampInt64(v, low, high int64) int64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// Redact masks secret fields (orchestrator_token, photo_token) in a
// config object to show only the first two and last two characters
// when length > 4, otherwise all asterisks. It is applied to both
// config-plan list views and reported_config snapshots.
func Redact(raw []byte) []byte {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}

	for key := range obj {
		if !secretKeys[key] {
			continue
		}
		var s string
		if err := json.Unmarshal(obj[key], &s); err != nil {
			continue
		}
		masked, _ := json.Marshal(maskSecret(s))
		obj[key] = masked
	}

	redacted, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return redacted
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		out := make([]byte, len(s))
		for i := range out {
			out[i] = '*'
		}
		return string(out)
	}
	middle := make([]byte, len(s)-4)
	for i := range middle {
		middle[i] = '*'
	}
	return s[:2] + string(middle) + s[len(s)-2:]
}
