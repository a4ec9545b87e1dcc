package assetdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stacklet/mcp-server/internal/auth"
	"github.com/stacklet/mcp-server/internal/metric"
)

// ClientConfig configures the AssetDB client behavior.
type ClientConfig struct {
	// Timeout for individual requests (default: 60s). Query execution has
	// its own polling deadline on top of this.
	Timeout time.Duration

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Client talks to the AssetDB warehouse API. Authentication is the Stacklet
// identity token, presented as a cookie rather than a bearer header.
type Client struct {
	baseURL      string
	cookie       string
	dataSourceID int
	httpClient   *http.Client
	rateLimiter  *rate.Limiter
	metrics      *metric.Metrics

	// pollStart is the first job poll interval; it doubles on each poll.
	pollStart time.Duration
}

// NewClient creates an AssetDB client for the given credentials. dataSourceID
// selects the warehouse datasource for ad hoc and saved queries. metrics may
// be nil.
func NewClient(creds auth.Credentials, dataSourceID int, config *ClientConfig, metrics *metric.Metrics) *Client {
	if config == nil {
		config = &ClientConfig{}
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	return &Client{
		baseURL:      creds.ServiceEndpoint("redash"),
		cookie:       "stacklet-auth=" + creds.IdentityToken,
		dataSourceID: dataSourceID,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		metrics:     metrics,
		pollStart:   2 * time.Second,
	}
}

// ListQueries returns one page of saved queries, optionally filtered by a
// search term and tags.
func (c *Client) ListQueries(ctx context.Context, page, pageSize int, search string, tags []string) (*QueryList, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	if search != "" {
		params.Set("q", search)
	}
	for _, tag := range tags {
		params.Add("tags", tag)
	}

	var list QueryList
	if err := c.call(ctx, http.MethodGet, "api/queries?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetQuery fetches one saved query by id.
func (c *Client) GetQuery(ctx context.Context, id int) (*Query, error) {
	var query Query
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("api/queries/%d", id), nil, &query); err != nil {
		return nil, err
	}
	return &query, nil
}

// CreateQuery saves a new query. New queries start as drafts unless the
// upsert says otherwise.
func (c *Client) CreateQuery(ctx context.Context, upsert QueryUpsert) (*Query, error) {
	if upsert.Name == "" {
		return nil, fmt.Errorf("query name is required")
	}
	if upsert.Query == "" {
		return nil, fmt.Errorf("query text is required")
	}
	var query Query
	if err := c.call(ctx, http.MethodPost, "api/queries", upsert.Payload(c.dataSourceID), &query); err != nil {
		return nil, err
	}
	return &query, nil
}

// UpdateQuery applies the non-zero upsert fields to an existing saved query.
func (c *Client) UpdateQuery(ctx context.Context, id int, upsert QueryUpsert) (*Query, error) {
	var query Query
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("api/queries/%d", id), upsert.Payload(0), &query); err != nil {
		return nil, err
	}
	return &query, nil
}

// ArchiveQuery archives (soft deletes) a saved query.
func (c *Client) ArchiveQuery(ctx context.Context, id int) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("api/queries/%d", id), nil, nil)
}

// ExecuteSavedQuery runs a saved query, reusing a cached result no older than
// maxAge when one exists, and waits up to timeout for fresh execution.
func (c *Client) ExecuteSavedQuery(ctx context.Context, id int, parameters map[string]any, maxAge int, timeout time.Duration) (*QueryResult, error) {
	payload := map[string]any{"max_age": maxAge}
	if len(parameters) > 0 {
		payload["parameters"] = parameters
	}
	return c.executeResults(ctx, fmt.Sprintf("api/queries/%d/results", id), payload, timeout)
}

// ExecuteAdhocQuery runs raw SQL against the configured datasource and waits
// up to timeout for the result.
func (c *Client) ExecuteAdhocQuery(ctx context.Context, query string, maxAge int, applyAutoLimit bool, timeout time.Duration) (*QueryResult, error) {
	payload := map[string]any{
		"query":            query,
		"data_source_id":   c.dataSourceID,
		"max_age":          maxAge,
		"apply_auto_limit": applyAutoLimit,
	}
	return c.executeResults(ctx, "api/query_results", payload, timeout)
}

// GetQueryResult fetches a completed result by id.
func (c *Client) GetQueryResult(ctx context.Context, resultID int) (*QueryResult, error) {
	var envelope struct {
		QueryResult *QueryResult `json:"query_result"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("api/query_results/%d", resultID), nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.QueryResult == nil {
		return nil, fmt.Errorf("result %d: empty query_result payload", resultID)
	}
	return envelope.QueryResult, nil
}

// ResultURLs builds per-format download URLs for a query result. The URLs
// embed the query's API key so they work outside this authenticated session.
func (c *Client) ResultURLs(query *Query, resultID int) map[ExportFormat]string {
	urls := make(map[ExportFormat]string, len(ExportFormats))
	for _, format := range ExportFormats {
		urls[format] = fmt.Sprintf("%sapi/queries/%d/results/%d.%s?api_key=%s",
			c.baseURL, query.ID, resultID, format, query.APIKey)
	}
	return urls
}

// executeResults posts an execution request and resolves the response, which
// is either a cached result or a job to poll.
func (c *Client) executeResults(ctx context.Context, path string, payload map[string]any, timeout time.Duration) (*QueryResult, error) {
	if c.metrics != nil {
		c.metrics.AssetDBQueries.Inc()
	}

	var envelope struct {
		QueryResult *QueryResult `json:"query_result"`
		Job         *Job         `json:"job"`
	}
	if err := c.call(ctx, http.MethodPost, path, payload, &envelope); err != nil {
		return nil, err
	}
	if envelope.QueryResult != nil {
		return envelope.QueryResult, nil
	}
	if envelope.Job == nil {
		return nil, fmt.Errorf("execution response had neither query_result nor job")
	}
	return c.pollJob(ctx, envelope.Job, timeout)
}

// pollJob waits for an execution job to finish, backing off exponentially,
// then fetches the result it produced.
func (c *Client) pollJob(ctx context.Context, job *Job, timeout time.Duration) (*QueryResult, error) {
	deadline := time.Now().Add(timeout)
	interval := c.pollStart

	for !job.Terminal() {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("query did not complete within %s (job %s)", timeout, job.ID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		interval *= 2

		var envelope struct {
			Job *Job `json:"job"`
		}
		if err := c.call(ctx, http.MethodGet, "api/jobs/"+job.ID, nil, &envelope); err != nil {
			return nil, err
		}
		if envelope.Job == nil {
			return nil, fmt.Errorf("job %s: empty job payload", job.ID)
		}
		job = envelope.Job
	}

	switch job.Status {
	case JobFinished:
		if job.QueryResultID == nil {
			return nil, fmt.Errorf("job %s finished without a result id", job.ID)
		}
		return c.GetQueryResult(ctx, *job.QueryResultID)
	case JobCanceled:
		return nil, fmt.Errorf("query canceled (job %s)", job.ID)
	default:
		message := job.Error
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("query failed: %s", message)
	}
}

// call performs one API request and decodes the JSON response into out, which
// may be nil when the body does not matter.
func (c *Client) call(ctx context.Context, method, path string, payload any, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("assetdb request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("assetdb %s %s: HTTP %d: %s", method, path, resp.StatusCode, truncate(string(data), 500))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
