// Package rdap provides a client for RDAP IP-ownership lookups against a
// regional registry (ARIN by default).
package rdap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the registry lookup operations.
type Client interface {
	// IPNetwork fetches the ownership document for an IP address.
	IPNetwork(ctx context.Context, ip string) (*Network, error)
}

// Network is the parsed RDAP response for an IP network.
type Network struct {
	Name     string
	Handle   string
	Entities []Entity
}

// Entity is one entity from the RDAP document with its vcard fields lifted
// out of the jCard array.
type Entity struct {
	FullName string
	Kind     string
	Roles    []string
	Events   []Event
	Entities []Entity
}

// Event is a dated registry event such as "registration" or "last changed".
type Event struct {
	Action string
	Date   time.Time
}

// LatestEventDate returns the most recent registration/last-changed date, or
// the zero time if the entity has no dated events.
func (e Entity) LatestEventDate() time.Time {
	var latest time.Time
	for _, ev := range e.Events {
		if ev.Date.After(latest) {
			latest = ev.Date
		}
	}
	return latest
}

// HasRole reports whether the entity carries the given RDAP role.
func (e Entity) HasRole(role string) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Option configures the RDAP client.
type Option func(*httpClient)

// WithBaseURL sets a custom registry base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLimiter sets the adaptive rate limiter shared across requests.
func WithLimiter(l *AdaptiveLimiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithMaxRetries bounds the per-call retry count.
func WithMaxRetries(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

type httpClient struct {
	baseURL    string
	http       *http.Client
	limiter    *AdaptiveLimiter
	maxRetries int
}

// NewClient creates an RDAP client. The default target is the ARIN registry
// with a 10 second per-request timeout.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    "https://rdap.arin.net/registry",
		maxRetries: 5,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: NewAdaptiveLimiter(100*time.Millisecond, 30*time.Second, 2, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IPNetwork implements Client. Retries are bounded and paced by the adaptive
// limiter; a 429 slows all in-flight workers, not just this call.
func (c *httpClient) IPNetwork(ctx context.Context, ip string) (*Network, error) {
	reqURL := fmt.Sprintf("%s/ip/%s", c.baseURL, ip)

	backoff := 1 * time.Second
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "rdap: create request")
		}
		req.Header.Set("Accept", "application/rdap+json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return nil, eris.Wrapf(lastErr, "rdap: fetch %s", ip)
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "rdap: read response body")
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.limiter.Backoff()
			lastErr = eris.Errorf("rdap: status 429 for %s", ip)
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		case resp.StatusCode >= 500:
			lastErr = eris.Errorf("rdap: status %d for %s", resp.StatusCode, ip)
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, backoff); err != nil {
					return nil, err
				}
				backoff *= 2
				continue
			}
			return nil, lastErr
		case resp.StatusCode != http.StatusOK:
			return nil, eris.Errorf("rdap: status %d for %s: %s", resp.StatusCode, ip, string(body))
		}

		c.limiter.Success()
		return parseNetwork(body)
	}

	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Wire types. The vcardArray is jCard: ["vcard", [[name, params, type, value], ...]].
type rawNetwork struct {
	Name     string      `json:"name"`
	Handle   string      `json:"handle"`
	Entities []rawEntity `json:"entities"`
}

type rawEntity struct {
	VcardArray []json.RawMessage `json:"vcardArray"`
	Roles      []string          `json:"roles"`
	Events     []rawEvent        `json:"events"`
	Entities   []rawEntity       `json:"entities"`
}

type rawEvent struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

func parseNetwork(body []byte) (*Network, error) {
	var raw rawNetwork
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "rdap: unmarshal response")
	}
	return &Network{
		Name:     raw.Name,
		Handle:   raw.Handle,
		Entities: convertEntities(raw.Entities),
	}, nil
}

func convertEntities(raw []rawEntity) []Entity {
	out := make([]Entity, 0, len(raw))
	for _, r := range raw {
		e := Entity{
			Roles:    r.Roles,
			Entities: convertEntities(r.Entities),
		}
		e.FullName, e.Kind = parseVcard(r.VcardArray)
		for _, ev := range r.Events {
			date, err := time.Parse(time.RFC3339, ev.Date)
			if err != nil {
				continue
			}
			e.Events = append(e.Events, Event{Action: ev.Action, Date: date})
		}
		out = append(out, e)
	}
	return out
}

// parseVcard lifts the "fn" and "kind" properties out of a jCard array.
// Malformed vcards yield empty strings rather than errors; registry data is
// not uniformly well-formed.
func parseVcard(arr []json.RawMessage) (fullName, kind string) {
	if len(arr) < 2 {
		return "", ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(arr[1], &props); err != nil {
		return "", ""
	}
	for _, p := range props {
		if len(p) < 4 {
			continue
		}
		var name string
		if err := json.Unmarshal(p[0], &name); err != nil {
			continue
		}
		var value string
		if err := json.Unmarshal(p[3], &value); err != nil {
			continue
		}
		switch name {
		case "fn":
			fullName = value
		case "kind":
			kind = value
		}
	}
	return fullName, kind
}
