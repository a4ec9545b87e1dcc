// Package docs fetches Stacklet documentation files from the deployment's
// docs service.
package docs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stacklet/mcp-server/internal/auth"
)

// File is one entry in the documentation index.
type File struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// List is the documentation index plus guidance for the caller.
type List struct {
	BaseURL          string `json:"base_url"`
	AvailableFiles   []File `json:"available_document_files"`
	Note             string `json:"note"`
	RecommendedStart string `json:"recommended_start"`
}

// Content is a fetched documentation file.
type Content struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Client fetches documentation over the docs service endpoint, authenticated
// with the identity token cookie.
type Client struct {
	baseURL    string
	cookie     string
	httpClient *http.Client
}

// NewClient creates a docs client for the given credentials.
func NewClient(creds auth.Credentials, transport http.RoundTripper) *Client {
	return &Client{
		baseURL: creds.ServiceEndpoint("docs"),
		cookie:  "stacklet-auth=" + creds.IdentityToken,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Index fetches the documentation index.
func (c *Client) Index(ctx context.Context) (*List, error) {
	var files []File
	if err := c.getJSON(ctx, "index.json", &files); err != nil {
		return nil, err
	}
	return &List{
		BaseURL:        c.baseURL,
		AvailableFiles: files,
		Note: "Fetch individual files by path with docs_read. Paths are relative " +
			"to the documentation root.",
		RecommendedStart: "index_llms.md",
	}, nil
}

// Read fetches one documentation file by its index path.
func (c *Client) Read(ctx context.Context, path string) (*Content, error) {
	data, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Content{Path: path, Content: string(data)}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Cookie", c.cookie)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("docs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("document %q not found", path)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("docs %s: HTTP %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
