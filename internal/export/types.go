// Package export implements the GraphQL connection dataset export engine: it
// turns an arbitrarily large paginated connection into a flat CSV artifact,
// with schema-driven query composition, JMESPath column projection, and an
// asynchronous job lifecycle with bounded-wait polling.
package export

import (
	"fmt"
	"time"
)

// Paging argument names owned exclusively by the pagination driver. A caller
// attempt to set any of these is an input error, not silently overridden.
var pagingArgs = map[string]bool{
	"first":  true,
	"after":  true,
	"last":   true,
	"before": true,
}

// ColumnSpec defines one output column of an export.
type ColumnSpec struct {
	// Name is the output header; must be non-empty and unique per request.
	Name string `json:"name"`
	// Path is a dot-separated field path relative to the connection node.
	Path string `json:"path"`
	// Subpath is an optional JMESPath expression applied to the value found
	// at Path, typically when Path resolves to a JSON-encoded field.
	Subpath string `json:"subpath,omitempty"`
}

// Param is an extra argument passed to the connection field.
type Param struct {
	Name string `json:"name"`
	// Type is the exact GraphQL type of the parameter, e.g. "CloudProvider!".
	// When empty the schema's declared argument type is used.
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// FilterSingle is a leaf filter term.
type FilterSingle struct {
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// FilterMultiple combines nested filter elements with AND/OR.
type FilterMultiple struct {
	Operator string          `json:"operator"`
	Elements []FilterElement `json:"elements"`
}

// FilterElement is a recursive filter structure forwarded to the connection
// field's filterElement argument as-is. Semantic validity is the remote
// server's responsibility, surfaced via problems.
type FilterElement struct {
	Single   *FilterSingle   `json:"single,omitempty"`
	Multiple *FilterMultiple `json:"multiple,omitempty"`
}

// Request describes one dataset export.
type Request struct {
	// ConnectionField is the connection to export, e.g. "accounts".
	ConnectionField string `json:"connection_field"`
	// NodeID optionally roots the export at a specific node instead of the
	// root query type.
	NodeID string `json:"node_id,omitempty"`
	// Columns define the output, in header order.
	Columns []ColumnSpec `json:"columns"`
	// Params are extra connection arguments; paging arguments are rejected.
	Params []Param `json:"params,omitempty"`
	// Filter is an optional filterElement argument value.
	Filter *FilterElement `json:"filter,omitempty"`
	// PageSize is fixed for the duration of the export.
	PageSize int `json:"page_size,omitempty"`
	// RowLimit optionally truncates the export; truncation is not failure.
	RowLimit int `json:"row_limit,omitempty"`
}

// Validate checks everything that needs no schema: column shape and the
// paging-argument ban. Schema-dependent checks happen at composition.
func (r *Request) Validate() error {
	if r.ConnectionField == "" {
		return errorf(CodeBadRequest, "connection_field is required")
	}
	if len(r.Columns) == 0 {
		return errorf(CodeBadRequest, "at least one column is required")
	}
	seen := make(map[string]bool, len(r.Columns))
	for _, col := range r.Columns {
		if col.Name == "" {
			return errorf(CodeBadRequest, "column name must not be empty")
		}
		if col.Path == "" {
			return errorf(CodeBadRequest, "column %q has no path", col.Name)
		}
		if seen[col.Name] {
			return errorf(CodeBadRequest, "duplicate column name %q", col.Name)
		}
		seen[col.Name] = true
	}
	for _, p := range r.Params {
		if pagingArgs[p.Name] {
			return errorf(CodePagingParam, "pagination argument %q is managed by the export engine", p.Name)
		}
	}
	if r.Filter != nil {
		if err := checkFilterArgs(r.Filter); err != nil {
			return err
		}
	}
	if r.PageSize < 0 || r.RowLimit < 0 {
		return errorf(CodeBadRequest, "page_size and row_limit must not be negative")
	}
	return nil
}

func checkFilterArgs(f *FilterElement) error {
	if f.Single != nil && pagingArgs[f.Single.Name] {
		return errorf(CodePagingParam, "pagination argument %q is managed by the export engine", f.Single.Name)
	}
	if f.Multiple != nil {
		for i := range f.Multiple.Elements {
			if err := checkFilterArgs(&f.Multiple.Elements[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// State is the lifecycle state of an export job.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Snapshot is a point-in-time view of an export job, safe to hand to pollers.
type Snapshot struct {
	DatasetID      string     `json:"dataset_id"`
	Started        time.Time  `json:"started"`
	ProcessedRows  int64      `json:"processed_rows"`
	Completed      *time.Time `json:"completed"`
	Success        *bool      `json:"success"`
	Message        string     `json:"message,omitempty"`
	DownloadURL    *string    `json:"download_url"`
	AvailableUntil *time.Time `json:"available_until"`
}

// Terminal reports whether the job has finished, either way.
func (s Snapshot) Terminal() bool { return s.Completed != nil }

func (s Snapshot) String() string {
	return fmt.Sprintf("dataset %s: %d rows", s.DatasetID, s.ProcessedRows)
}
