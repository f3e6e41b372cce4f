// Package source wraps the HTTP endpoints that serve TLE payloads.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// UserAgent identifies this client to upstream providers.
	UserAgent = "TLE-Fetcher/3.0 (+https://github.com/cywf/tle-fetcher)"

	// AttributionHeader carries the provider attribution on every request.
	AttributionHeader = "X-TLE-Attribution"

	defaultTimeout = 10 * time.Second

	// maxBodyBytes caps response bodies so a misbehaving endpoint cannot
	// consume unbounded memory. TLE payloads are tiny.
	maxBodyBytes = 10 << 20
)

// Client fetches TLE payloads for single catalog identifiers from one
// provider, enforcing a minimum interval between requests.
type Client struct {
	Name        string
	URLTemplate string
	Attribution string
	RateLimit   time.Duration
	Timeout     time.Duration
	Headers     map[string]string

	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// NewClient builds a Client from a definition, filling in defaults.
func NewClient(def Definition) *Client {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		Name:        def.Name,
		URLTemplate: def.URLTemplate,
		Attribution: def.Attribution,
		RateLimit:   def.RateLimit,
		Timeout:     timeout,
		Headers:     def.Headers,
		httpClient:  &http.Client{Timeout: timeout},
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// URL substitutes the catalog identifier into the client's URL template.
func (c *Client) URL(id string) string {
	return strings.ReplaceAll(c.URLTemplate, "{id}", url.QueryEscape(id))
}

// Fetch retrieves the raw TLE payload for id as text.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(id), nil)
	if err != nil {
		return "", fmt.Errorf("%s: creating request: %w", c.Name, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	attribution := c.Attribution
	if attribution == "" {
		attribution = c.Name
	}
	req.Header.Set(AttributionHeader, attribution)
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: network error: %w", c.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: returned HTTP %d", c.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("%s: reading response body: %w", c.Name, err)
	}
	if len(body) > maxBodyBytes {
		return "", fmt.Errorf("%s: response exceeds %d byte limit", c.Name, maxBodyBytes)
	}

	return string(body), nil
}

// waitRateLimit blocks until the per-client minimum interval has elapsed
// since the previous request.
func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.RateLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastRequest.IsZero() {
		if delay := c.RateLimit - now.Sub(c.lastRequest); delay > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			now = c.now()
		}
	}
	c.lastRequest = now
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
