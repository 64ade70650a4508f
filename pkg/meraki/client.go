// Package meraki provides a client for the Meraki dashboard API endpoints
// used by the circuit pipeline: appliance inventory, uplink statuses, and
// device notes.
package meraki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the dashboard API operations.
type Client interface {
	// ListApplianceDevices returns every appliance device in the organization.
	ListApplianceDevices(ctx context.Context) ([]Device, error)
	// ListNetworks returns the organization's networks.
	ListNetworks(ctx context.Context) ([]Network, error)
	// ListUplinkStatuses returns per-appliance uplink state.
	ListUplinkStatuses(ctx context.Context) ([]UplinkStatus, error)
	// SetDeviceNotes replaces the free-text notes on one device.
	SetDeviceNotes(ctx context.Context, serial, notes string) error
}

// Device is an appliance as reported by the dashboard.
type Device struct {
	Serial    string   `json:"serial"`
	Name      string   `json:"name"`
	Model     string   `json:"model"`
	NetworkID string   `json:"networkId"`
	Tags      []string `json:"tags"`
	Notes     string   `json:"notes"`
}

// Network is a dashboard network.
type Network struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Uplink is one WAN interface's live state.
type Uplink struct {
	Interface    string `json:"interface"`
	Status       string `json:"status"`
	IP           string `json:"ip"`
	PublicIP     string `json:"publicIp"`
	IPAssignedBy string `json:"ipAssignedBy"`
}

// UplinkStatus groups the uplinks of one appliance.
type UplinkStatus struct {
	NetworkID string   `json:"networkId"`
	Serial    string   `json:"serial"`
	Uplinks   []Uplink `json:"uplinks"`
}

// Option configures the Meraki client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) { c.http.Timeout = d }
}

type httpClient struct {
	apiKey  string
	orgID   string
	baseURL string
	http    *http.Client
}

// perPage is the dashboard's maximum page size.
const perPage = 1000

// NewClient creates a dashboard API client scoped to one organization.
func NewClient(apiKey, orgID string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		orgID:   orgID,
		baseURL: "https://api.meraki.com/api/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request, body []byte) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)
		if body != nil {
			retryReq.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "meraki: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("meraki: status %d: %s", resp.StatusCode, string(respBody))
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return respBody, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "meraki: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	body, statusCode, err := c.retryDo(ctx, req, nil)
	if err != nil {
		return eris.Wrapf(err, "meraki: GET %s", path)
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("meraki: GET %s: unexpected status %d: %s", path, statusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "meraki: unmarshal %s response", path)
	}
	return nil
}

func (c *httpClient) ListApplianceDevices(ctx context.Context) ([]Device, error) {
	var all []Device
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("perPage", fmt.Sprint(perPage))
		q.Add("productTypes[]", "appliance")
		if startingAfter != "" {
			q.Set("startingAfter", startingAfter)
		}

		var page []Device
		if err := c.getJSON(ctx, "/organizations/"+c.orgID+"/devices", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < perPage {
			return all, nil
		}
		startingAfter = page[len(page)-1].Serial
	}
}

func (c *httpClient) ListNetworks(ctx context.Context) ([]Network, error) {
	var all []Network
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("perPage", fmt.Sprint(perPage))
		if startingAfter != "" {
			q.Set("startingAfter", startingAfter)
		}

		var page []Network
		if err := c.getJSON(ctx, "/organizations/"+c.orgID+"/networks", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < perPage {
			return all, nil
		}
		startingAfter = page[len(page)-1].ID
	}
}

func (c *httpClient) ListUplinkStatuses(ctx context.Context) ([]UplinkStatus, error) {
	var all []UplinkStatus
	startingAfter := ""
	for {
		q := url.Values{}
		q.Set("perPage", fmt.Sprint(perPage))
		if startingAfter != "" {
			q.Set("startingAfter", startingAfter)
		}

		var page []UplinkStatus
		if err := c.getJSON(ctx, "/organizations/"+c.orgID+"/appliance/uplink/statuses", q, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < perPage {
			return all, nil
		}
		startingAfter = page[len(page)-1].Serial
	}
}

func (c *httpClient) SetDeviceNotes(ctx context.Context, serial, notes string) error {
	payload, err := json.Marshal(map[string]string{"notes": notes})
	if err != nil {
		return eris.Wrap(err, "meraki: marshal notes")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/devices/"+serial, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "meraki: create notes request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, statusCode, err := c.retryDo(ctx, req, payload)
	if err != nil {
		return eris.Wrapf(err, "meraki: update notes for %s", serial)
	}
	if statusCode == http.StatusNotFound {
		return ErrDeviceNotFound
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("meraki: update notes for %s: unexpected status %d: %s", serial, statusCode, string(body))
	}
	return nil
}

// ErrDeviceNotFound is returned when the dashboard does not know the serial.
var ErrDeviceNotFound = eris.New("meraki: device not found")
