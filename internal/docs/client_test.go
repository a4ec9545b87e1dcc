package docs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stacklet/mcp-server/internal/auth"
	"github.com/stacklet/mcp-server/internal/docs"
)

func testClient(t *testing.T, mux *http.ServeMux) *docs.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return docs.NewClient(auth.Credentials{
		Endpoint:      srv.URL + "/api.", // rewritten to the docs service path
		IdentityToken: "id-token",
	}, nil)
}

func TestIndex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs./index.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Cookie"); got != "stacklet-auth=id-token" {
			t.Errorf("Cookie = %q", got)
		}
		json.NewEncoder(w).Encode([]docs.File{
			{Path: "index_llms.md", Title: "Start here"},
			{Path: "guides/policies.md", Title: "Policies"},
		})
	})

	list, err := testClient(t, mux).Index(context.Background())
	if err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if len(list.AvailableFiles) != 2 || list.AvailableFiles[1].Path != "guides/policies.md" {
		t.Errorf("files = %+v", list.AvailableFiles)
	}
	if list.RecommendedStart != "index_llms.md" {
		t.Errorf("RecommendedStart = %q", list.RecommendedStart)
	}
}

func TestRead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/docs./guides/policies.md", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# Policies\n"))
	})

	content, err := testClient(t, mux).Read(context.Background(), "guides/policies.md")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if content.Path != "guides/policies.md" || content.Content != "# Policies\n" {
		t.Errorf("content = %+v", content)
	}
}

func TestReadNotFound(t *testing.T) {
	_, err := testClient(t, http.NewServeMux()).Read(context.Background(), "missing.md")
	if err == nil {
		t.Fatal("expected an error for a missing document")
	}
}
