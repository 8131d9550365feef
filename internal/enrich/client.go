package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ErrAuth marks a service-wide credential failure (401/403). It is
// fatal for the phase: retrying other identifiers cannot help.
var ErrAuth = errors.New("catalog API rejected credentials")

// Client queries the App Store catalog API (RapidAPI-style: key and
// host headers, JSON responses).
type Client struct {
	apiKey  string
	apiHost string
	country string
	baseURL string
	client  *http.Client
}

// NewClient creates a catalog client reading credentials from the
// named environment variables.
func NewClient(apiKeyEnv, apiHostEnv, country string, timeout time.Duration) *Client {
	host := os.Getenv(apiHostEnv)
	c := &Client{
		apiKey:  os.Getenv(apiKeyEnv),
		apiHost: host,
		country: country,
		client:  &http.Client{Timeout: timeout},
	}
	if host != "" {
		c.baseURL = "https://" + host
	}
	return c
}

// IsConfigured returns whether both key and host are available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.apiHost != ""
}

// Lookup searches the catalog for an app by name. It returns the raw
// JSON of the first match verbatim, or found=false when the service
// has no match. Transport and server errors are returned for the
// caller to retry; ErrAuth is permanent.
func (c *Client) Lookup(appName string) (raw string, found bool, err error) {
	params := url.Values{
		"term":    {appName},
		"country": {c.country},
		"limit":   {"1"},
	}

	req, err := http.NewRequest("GET", c.baseURL+"/v1/app-store-api/search?"+params.Encode(), nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("catalog API error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", false, fmt.Errorf("%w (HTTP %d)", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("catalog API returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("reading response: %w", err)
	}

	// The service wraps matches in a results array; an empty array is
	// a miss, not an error.
	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", false, fmt.Errorf("decoding response: %w", err)
	}
	if len(envelope.Results) == 0 {
		return "", false, nil
	}

	return string(envelope.Results[0]), true, nil
}
