// Package ifimgone is a Go client for the If I'm Gone emergency
// activation API. It covers the activation workflow (request, verify,
// cancel) and emergency access (redeeming sharing tokens for grants).
package ifimgone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds the configuration for the client.
type Config struct {
	// BaseURL is the root URL of the server.
	// Examples: "https://api.example.com" or "https://api.example.com/api/emergency"
	// The "/api/emergency" suffix is appended automatically if missing.
	BaseURL string

	// CacheTTL controls how long redeemed access grants are cached in
	// memory, so repeated Access calls for the same sharing token do not
	// each consume a use. Set to a negative value to disable caching.
	// Default: 2 minutes, capped by the grant's own expiry.
	CacheTTL time.Duration

	// HTTPClient is an optional custom HTTP client.
	// If nil, a default client with 10s timeout is used.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 2 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/emergency") {
		c.BaseURL = c.BaseURL + "/api/emergency"
	}
}

// Client is the If I'm Gone SDK client.
type Client struct {
	cfg   Config
	cache *grantCache
}

// NewClient creates a new client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:   cfg,
		cache: newGrantCache(),
	}
}

// RequestActivation opens a new emergency-activation request. The
// verification code is delivered out of band; the response only carries
// the pending request.
func (c *Client) RequestActivation(ctx context.Context, in ActivationRequestInput) (*ActivationRequest, error) {
	var out struct {
		Request *ActivationRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodPost, "/activation/request", in, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

// GetActivation fetches a single activation request.
func (c *Client) GetActivation(ctx context.Context, id string) (*ActivationRequest, error) {
	var out struct {
		Request *ActivationRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodGet, "/activation/"+id, nil, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

// ListActive returns all non-terminal activation requests for a user.
func (c *Client) ListActive(ctx context.Context, userID string) ([]*ActivationRequest, error) {
	var out struct {
		Requests []*ActivationRequest `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, "/activation/active?userId="+userID, nil, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

// Verify submits a verification for a pending request. On success the
// result carries the raw sharing token; it is returned exactly once.
func (c *Client) Verify(ctx context.Context, requestID string, in VerificationInput) (*VerificationResult, error) {
	var out VerificationResult
	if err := c.do(ctx, http.MethodPost, "/activation/"+requestID+"/verify", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject denies a pending activation request.
func (c *Client) Reject(ctx context.Context, requestID string, in ResolutionInput) (*ActivationRequest, error) {
	var out struct {
		Request *ActivationRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodPost, "/activation/"+requestID+"/reject", in, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

// Cancel cancels an activation request. Cancelling an already-cancelled
// request succeeds and returns the current state.
func (c *Client) Cancel(ctx context.Context, requestID string, in ResolutionInput) (*ActivationRequest, error) {
	var out struct {
		Request *ActivationRequest `json:"request"`
	}
	if err := c.do(ctx, http.MethodPost, "/activation/"+requestID+"/cancel", in, &out); err != nil {
		return nil, err
	}
	return out.Request, nil
}

// AuditReport fetches the aggregate risk report for a request.
func (c *Client) AuditReport(ctx context.Context, requestID string) (*RiskReport, error) {
	var out struct {
		Report *RiskReport `json:"report"`
	}
	if err := c.do(ctx, http.MethodGet, "/activation/"+requestID+"/audit", nil, &out); err != nil {
		return nil, err
	}
	return out.Report, nil
}

// Access redeems one use of a sharing token for a signed grant. Grants
// are cached according to CacheTTL so hot paths do not burn through the
// token's use budget.
func (c *Client) Access(ctx context.Context, sharingToken string) (*AccessGrant, error) {
	if sharingToken == "" {
		return nil, ErrNoToken
	}

	if c.cfg.CacheTTL > 0 {
		if grant, ok := c.cache.get(sharingToken); ok {
			return grant, nil
		}
	}

	var out AccessGrant
	if err := c.do(ctx, http.MethodPost, "/access/validate", map[string]string{"token": sharingToken}, &out); err != nil {
		return nil, err
	}

	if c.cfg.CacheTTL > 0 {
		ttl := c.cfg.CacheTTL
		if grantTTL := time.Duration(out.ExpiresIn) * time.Second; grantTTL > 0 && grantTTL < ttl {
			ttl = grantTTL
		}
		c.cache.set(sharingToken, &out, ttl)
	}
	return &out, nil
}

// RevokeToken revokes a sharing token by id.
func (c *Client) RevokeToken(ctx context.Context, in RevokeTokenInput) error {
	return c.do(ctx, http.MethodPost, "/sharing/tokens/revoke", in, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ifimgone: failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("ifimgone: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("ifimgone: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ifimgone: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotAuthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("ifimgone: failed to parse response: %w", err)
		}
	}
	return nil
}
