// Package assetdb is a client for the AssetDB SQL warehouse, spoken through
// its Redash-compatible API with Stacklet cookie authentication.
package assetdb

import "time"

// ExportFormat is a download format for query results.
type ExportFormat string

// Formats supported by the result download endpoints.
var ExportFormats = []ExportFormat{"csv", "json", "tsv", "xlsx"}

// Job statuses for async query execution.
const (
	JobQueued    = 1
	JobStarted   = 2
	JobFinished  = 3
	JobFailed    = 4
	JobCanceled  = 5
	JobDeferred  = 6
	JobScheduled = 7
)

// Job is the warehouse-side execution job for a query.
type Job struct {
	ID            string `json:"id"`
	Status        int    `json:"status"`
	Error         string `json:"error"`
	QueryResultID *int   `json:"query_result_id"`
}

// Terminal reports whether the job has finished, failed, or been canceled.
func (j Job) Terminal() bool {
	return j.Status == JobFinished || j.Status == JobFailed || j.Status == JobCanceled
}

// User is the warehouse user who owns a query.
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Query is a saved warehouse query.
type Query struct {
	ID                int            `json:"id"`
	LatestQueryDataID *int           `json:"latest_query_data_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Query             string         `json:"query"`
	APIKey            string         `json:"api_key"`
	IsDraft           bool           `json:"is_draft"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
	CreatedAt         *time.Time     `json:"created_at,omitempty"`
	DataSourceID      int            `json:"data_source_id"`
	Options           map[string]any `json:"options"`
	Tags              []string       `json:"tags"`
	IsFavorite        bool           `json:"is_favorite"`
	User              *User          `json:"user,omitempty"`
	UserID            int            `json:"user_id,omitempty"`
}

// Owner returns the query user, falling back to the bare user id some list
// endpoints return instead of a nested object.
func (q *Query) Owner() User {
	if q.User != nil {
		return *q.User
	}
	return User{ID: q.UserID}
}

// HasParameters reports whether the saved query declares parameters.
func (q *Query) HasParameters() bool {
	params, _ := q.Options["parameters"].([]any)
	return len(params) > 0
}

// QueryList is the paginated saved-query listing.
type QueryList struct {
	Count    int      `json:"count"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Results  []*Query `json:"results"`
}

// QueryUpsert carries the fields for creating or updating a saved query.
// Only non-zero fields are sent.
type QueryUpsert struct {
	Name        string         `json:"name,omitempty"`
	Query       string         `json:"query,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	IsDraft     *bool          `json:"is_draft,omitempty"`
}

// Payload builds the request body for query create/update.
func (u QueryUpsert) Payload(dataSourceID int) map[string]any {
	payload := make(map[string]any)
	if u.Name != "" {
		payload["name"] = u.Name
	}
	if u.Query != "" {
		payload["query"] = u.Query
	}
	if u.Description != "" {
		payload["description"] = u.Description
	}
	if u.Tags != nil {
		payload["tags"] = u.Tags
	}
	if u.Options != nil {
		payload["options"] = u.Options
	}
	if u.IsDraft != nil {
		payload["is_draft"] = *u.IsDraft
	}
	if dataSourceID > 0 {
		payload["data_source_id"] = dataSourceID
	}
	return payload
}

// ResultColumn is one column definition in a query result.
type ResultColumn struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	FriendlyName string `json:"friendly_name,omitempty"`
}

// ResultData holds the columns and rows of a query result.
type ResultData struct {
	Columns []ResultColumn   `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// QueryResult is a completed query execution.
type QueryResult struct {
	ID           int        `json:"id"`
	Query        string     `json:"query"`
	Data         ResultData `json:"data"`
	DataSourceID int        `json:"data_source_id"`
	Runtime      float64    `json:"runtime"`
	RetrievedAt  *time.Time `json:"retrieved_at,omitempty"`
}
