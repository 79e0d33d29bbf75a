// Package daily is the client for the daily-image upstream: it resolves
// the %DATE% placeholder in a URL template and fetches the rendered BMP
// with a dedicated short-timeout HTTP client.
package daily

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/relabs-tech/photoframe-orchestrator/internal/apierr"
)

// Client fetches the daily BMP from a URL template.
type Client struct {
	Template string
	TZ       *time.Location
	http     *http.Client
}

// New returns a Client with the given timeout. A timeout below 1s is
// raised to 1s.
func New(template string, tz *time.Location, timeout time.Duration) *Client {
	if timeout < time.Second {
		timeout = time.Second
	}
	return &Client{
		Template: template,
		TZ:       tz,
		http:     &http.Client{Timeout: timeout},
	}
}

// URL resolves the %DATE% placeholder (and appends a date= query
// parameter if the template lacks one) for the given instant, in the
// client's configured timezone.
func (c *Client) URL(now time.Time) string {
	dateText := now.In(c.TZ).Format("2006-01-02")
	url := strings.ReplaceAll(c.Template, "%DATE%", dateText)
	if !strings.Contains(url, "date=") {
		connector := "?"
		if strings.Contains(url, "?") {
			connector = "&"
		}
		url = fmt.Sprintf("%s%sdate=%s", url, connector, dateText)
	}
	return url
}

// Fetch resolves the URL for now and fetches the BMP bytes. It accepts
// only HTTP 200 with a non-empty body whose first two bytes are "BM";
// any other outcome is an UpstreamError.
func (c *Client) Fetch(now time.Time) ([]byte, error) {
	url := c.URL(now)

	resp, err := c.http.Get(url)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("fetch daily image: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierr.Upstream(fmt.Errorf("daily upstream returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Upstream(fmt.Errorf("read daily image body: %w", err))
	}

	if len(body) < 2 || body[0] != 'B' || body[1] != 'M' {
		return nil, apierr.Upstream(fmt.Errorf("daily upstream did not return a BMP"))
	}
	return body, nil
}
