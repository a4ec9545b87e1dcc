// Package artifact publishes finished export files and hands back expiring
// download references. Exports go to MinIO/S3 when configured, or to a local
// directory otherwise (and in tests).
package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// DefaultTTL is how long a published artifact stays retrievable.
const DefaultTTL = 24 * time.Hour

// Handle is a retrieval reference for a published artifact.
type Handle struct {
	Key            string    `json:"key"`
	DownloadURL    string    `json:"download_url"`
	AvailableUntil time.Time `json:"available_until"`
}

// Store publishes local files as retrievable artifacts.
type Store interface {
	// Publish uploads the file at path under key and returns its handle.
	// The caller keeps ownership of path.
	Publish(ctx context.Context, key, path, contentType string) (Handle, error)
}

// LocalStore keeps artifacts on disk and hands out file:// URLs. It mirrors
// what the S3 store does closely enough for development and tests.
type LocalStore struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

// NewLocalStore creates a local artifact store rooted at dir.
func NewLocalStore(root string, ttl time.Duration) *LocalStore {
	if root == "" {
		root = filepath.Join(os.TempDir(), "stacklet-mcp-exports")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	_ = os.MkdirAll(root, 0o755)
	return &LocalStore{root: root, ttl: ttl, now: time.Now}
}

// Publish copies the file into the store.
func (s *LocalStore) Publish(ctx context.Context, key, path, contentType string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Handle{}, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := copyFile(path, dest); err != nil {
		return Handle{}, fmt.Errorf("store artifact: %w", err)
	}
	return Handle{
		Key:            key,
		DownloadURL:    (&url.URL{Scheme: "file", Path: dest}).String(),
		AvailableUntil: s.now().Add(s.ttl),
	}, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
