package assetdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklet/mcp-server/internal/auth"
)

func testServer(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds := auth.Credentials{
		// The client rewrites api. to redash.; use the test server directly.
		Endpoint:      srv.URL,
		AccessToken:   "access",
		IdentityToken: "identity-token",
	}
	client := NewClient(creds, 1, nil, nil)
	client.baseURL = srv.URL + "/"
	client.pollStart = time.Millisecond
	return client, srv
}

func TestListQueriesParameters(t *testing.T) {
	var seen url.Values
	client, _ := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/queries", r.URL.Path)
		require.Equal(t, "stacklet-auth=identity-token", r.Header.Get("Cookie"))
		seen = r.URL.Query()
		json.NewEncoder(w).Encode(QueryList{
			Count: 1, Page: 2, PageSize: 10,
			Results: []*Query{{ID: 42, Name: "cost by account", UserID: 7}},
		})
	}))

	list, err := client.ListQueries(context.Background(), 2, 10, "cost", []string{"finops", "daily"})
	require.NoError(t, err)

	assert.Equal(t, "2", seen.Get("page"))
	assert.Equal(t, "10", seen.Get("page_size"))
	assert.Equal(t, "cost", seen.Get("q"))
	assert.Equal(t, []string{"finops", "daily"}, seen["tags"])

	require.Len(t, list.Results, 1)
	assert.Equal(t, 42, list.Results[0].ID)
	assert.Equal(t, User{ID: 7}, list.Results[0].Owner())
}

func TestExecuteAdhocCachedResult(t *testing.T) {
	client, _ := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/query_results", r.URL.Path)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "select 1", payload["query"])
		assert.Equal(t, float64(1), payload["data_source_id"])
		assert.Equal(t, true, payload["apply_auto_limit"])

		json.NewEncoder(w).Encode(map[string]any{
			"query_result": QueryResult{
				ID:    99,
				Query: "select 1",
				Data: ResultData{
					Columns: []ResultColumn{{Name: "?column?"}},
					Rows:    []map[string]any{{"?column?": 1}},
				},
			},
		})
	}))

	result, err := client.ExecuteAdhocQuery(context.Background(), "select 1", 3600, true, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 99, result.ID)
	assert.Len(t, result.Data.Rows, 1)
}

func TestExecuteSavedQueryPollsJob(t *testing.T) {
	resultID := 17
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/queries/5/results", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, map[string]any{"region": "us-east-1"}, payload["parameters"])
		json.NewEncoder(w).Encode(map[string]any{
			"job": Job{ID: "job-1", Status: JobQueued},
		})
	})
	mux.HandleFunc("/api/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		job := Job{ID: "job-1", Status: JobStarted}
		if polls >= 2 {
			job = Job{ID: "job-1", Status: JobFinished, QueryResultID: &resultID}
		}
		json.NewEncoder(w).Encode(map[string]any{"job": job})
	})
	mux.HandleFunc("/api/query_results/17", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"query_result": QueryResult{ID: resultID, Query: "select count(*) from resources"},
		})
	})

	client, _ := testServer(t, mux)
	result, err := client.ExecuteSavedQuery(context.Background(), 5,
		map[string]any{"region": "us-east-1"}, -1, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, resultID, result.ID)
	assert.Equal(t, 2, polls)
}

func TestExecuteFailedJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query_results", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"job": Job{ID: "job-2", Status: JobFailed, Error: "syntax error at or near FORM"},
		})
	})

	client, _ := testServer(t, mux)
	_, err := client.ExecuteAdhocQuery(context.Background(), "select 1 form x", 0, true, 5*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error at or near FORM")
}

func TestExecuteJobTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query_results", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"job": Job{ID: "job-3", Status: JobQueued}})
	})
	mux.HandleFunc("/api/jobs/job-3", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"job": Job{ID: "job-3", Status: JobStarted}})
	})

	client, _ := testServer(t, mux)
	_, err := client.ExecuteAdhocQuery(context.Background(), "select pg_sleep(600)", 0, true, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not complete")
}

func TestHTTPErrorsCarryBody(t *testing.T) {
	client, _ := testServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "query not found", http.StatusNotFound)
	}))

	_, err := client.GetQuery(context.Background(), 12345)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	assert.Contains(t, err.Error(), "query not found")
}

func TestResultURLs(t *testing.T) {
	client, srv := testServer(t, http.NewServeMux())
	query := &Query{ID: 5, APIKey: "key-abc"}

	urls := client.ResultURLs(query, 17)
	require.Len(t, urls, 4)
	want := srv.URL + "/api/queries/5/results/17.csv?api_key=key-abc"
	assert.Equal(t, want, urls["csv"])
	for _, format := range ExportFormats {
		assert.Contains(t, urls[format], "api_key=key-abc")
	}
}

func TestCreateQueryRequiresNameAndText(t *testing.T) {
	client, _ := testServer(t, http.NewServeMux())
	_, err := client.CreateQuery(context.Background(), QueryUpsert{Query: "select 1"})
	require.Error(t, err)
	_, err = client.CreateQuery(context.Background(), QueryUpsert{Name: "x"})
	require.Error(t, err)
}

func TestUpsertPayload(t *testing.T) {
	draft := true
	payload := QueryUpsert{
		Name:    "daily cost",
		Query:   "select 1",
		Tags:    []string{"finops"},
		IsDraft: &draft,
	}.Payload(3)

	assert.Equal(t, map[string]any{
		"name":           "daily cost",
		"query":          "select 1",
		"tags":           []string{"finops"},
		"is_draft":       true,
		"data_source_id": 3,
	}, payload)

	// Updates send only what changed, and no datasource.
	payload = QueryUpsert{Description: "docs"}.Payload(0)
	assert.Equal(t, map[string]any{"description": "docs"}, payload)
}

func TestJobTerminal(t *testing.T) {
	for status, terminal := range map[int]bool{
		JobQueued:    false,
		JobStarted:   false,
		JobFinished:  true,
		JobFailed:    true,
		JobCanceled:  true,
		JobScheduled: false,
	} {
		if got := (Job{Status: status}).Terminal(); got != terminal {
			t.Errorf("status %d: Terminal() = %v, want %v", status, got, terminal)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(strings.Repeat("x", 600), 500); len(got) != 503 {
		t.Errorf("len = %d", len(got))
	}
}
