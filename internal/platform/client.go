// Package platform is the client side of the Stacklet Platform GraphQL API:
// query execution, schema introspection, and the cached schema index used by
// the dataset export engine.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/stacklet/mcp-server/internal/auth"
)

// Executor runs GraphQL requests against an upstream endpoint. Transport
// failures and unparseable responses come back as errors; application-level
// GraphQL errors come back inside the Result.
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any) (*Result, error)
}

// Result is a parsed GraphQL response.
type Result struct {
	Data   map[string]any `json:"data"`
	Errors []QueryError   `json:"errors,omitempty"`
}

// QueryError is one entry from a GraphQL "errors" list.
type QueryError struct {
	Message    string           `json:"message"`
	Locations  []map[string]int `json:"locations,omitempty"`
	Path       []any            `json:"path,omitempty"`
	Extensions map[string]any   `json:"extensions,omitempty"`
}

func (e QueryError) Error() string { return e.Message }

// ClientConfig configures the GraphQL client behavior.
type ClientConfig struct {
	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Client executes GraphQL requests with bearer authentication and rate
// limiting. There is deliberately no retry layer: callers that need
// all-or-nothing semantics (the export engine) must see failures immediately.
type Client struct {
	creds       auth.Credentials
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a GraphQL client for the given credentials.
func NewClient(creds auth.Credentials, config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	return &Client{
		creds: creds,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// Identity keys cached per-deployment state such as schema snapshots.
func (c *Client) Identity() string {
	return c.creds.Fingerprint()
}

// Execute runs one GraphQL request. The platform backend sometimes sets
// 4xx/5xx status codes on valid GraphQL responses, so the body is parsed
// before the status code is considered.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any) (*Result, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unexpected response (HTTP %d): %s", resp.StatusCode, truncate(string(data), 500))
	}
	if result.Data == nil && len(result.Errors) == 0 {
		return nil, fmt.Errorf("unexpected response (HTTP %d): neither data nor errors present", resp.StatusCode)
	}
	return &result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
