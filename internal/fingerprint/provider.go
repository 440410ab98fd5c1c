// Package fingerprint resolves request-time identity signals into an opaque
// visitor identifier through an external provider. The identifier is an
// equality key only: the service performs no generation, hashing, or
// derivation of fingerprints itself.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"contactlink/pkg/platform/sentinel"
)

// Provider yields the visitor identifier for a set of request signals. An
// identifier is expected to be stable across requests from the same
// person/device; two requests with equal identifiers belong to one identity.
type Provider interface {
	Resolve(ctx context.Context, signals Signals) (string, error)
}

// Region selects the provider's regional API endpoint.
type Region string

const (
	RegionUS Region = "us"
	RegionEU Region = "eu"
	RegionAP Region = "ap"
)

// BaseURL returns the regional endpoint, or the US endpoint for unknown
// regions.
func (r Region) BaseURL() string {
	switch r {
	case RegionEU:
		return "https://eu.api.visitors.example.com"
	case RegionAP:
		return "https://ap.api.visitors.example.com"
	default:
		return "https://api.visitors.example.com"
	}
}

// Client calls the hosted visitor-resolution API. Concurrent resolutions for
// the same signal digest are collapsed into a single upstream request.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	group      singleflight.Group
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBaseURL overrides the regional endpoint. Used by tests and self-hosted
// deployments.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewClient constructs a provider client for the given region.
func NewClient(apiKey string, region Region, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    region.BaseURL(),
		apiKey:     apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type resolveRequest struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	ClientIP    string `json:"clientIp,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
}

type resolveResponse struct {
	VisitorID string `json:"visitorId"`
}

// Resolve obtains the visitor identifier for the signals. Provider failures,
// non-2xx responses, and empty identifiers all surface as
// sentinel.ErrUnavailable so the caller fails the operation without writing
// a contact.
func (c *Client) Resolve(ctx context.Context, signals Signals) (string, error) {
	v, err, _ := c.group.Do(signals.Digest(), func() (any, error) {
		return c.resolve(ctx, signals)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) resolve(ctx context.Context, signals Signals) (string, error) {
	body, err := json.Marshal(resolveRequest{
		Email:       signals.Email,
		PhoneNumber: signals.PhoneNumber,
		ClientIP:    signals.ClientIP,
		UserAgent:   NormalizeUserAgent(signals.UserAgent),
	})
	if err != nil {
		return "", fmt.Errorf("marshal resolve request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/visitors/resolve", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call fingerprint provider: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read and discard a bounded amount so the connection is reusable.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("fingerprint provider returned status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}

	var payload resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode resolve response: %w: %w", sentinel.ErrUnavailable, err)
	}
	visitorID := strings.TrimSpace(payload.VisitorID)
	if visitorID == "" {
		return "", fmt.Errorf("fingerprint provider returned no visitor id: %w", sentinel.ErrUnavailable)
	}
	return visitorID, nil
}
