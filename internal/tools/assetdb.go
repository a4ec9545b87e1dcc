package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/stacklet/mcp-server/internal/assetdb"
)

// QueryListItem is a saved query trimmed for listing.
type QueryListItem struct {
	ID            int          `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	HasParameters bool         `json:"has_parameters"`
	DataSourceID  int          `json:"data_source_id"`
	IsDraft       bool         `json:"is_draft"`
	IsFavorite    bool         `json:"is_favorite"`
	Tags          []string     `json:"tags"`
	User          assetdb.User `json:"user"`
}

// QueryListPagination describes the page of a saved query listing.
type QueryListPagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	HasNextPage bool `json:"has_next_page"`
	TotalCount  int  `json:"total_count"`
}

// QueryListResult is the saved query listing returned to the caller.
type QueryListResult struct {
	Queries    []QueryListItem     `json:"queries"`
	Pagination QueryListPagination `json:"pagination"`
}

// ResultArtifact is one downloadable rendering of a query result.
type ResultArtifact struct {
	Format       assetdb.ExportFormat `json:"format"`
	DownloadFrom string               `json:"download_from"`
}

// SQLResult is a query execution trimmed for the caller: the first rows
// inline, the full result on disk, and download URLs when available.
type SQLResult struct {
	ResultID           int                    `json:"result_id"`
	QueryID            *int                   `json:"query_id,omitempty"`
	QueryText          string                 `json:"query_text"`
	QueryRuntime       float64                `json:"query_runtime"`
	QueryTimestamp     *time.Time             `json:"query_timestamp,omitempty"`
	Columns            []assetdb.ResultColumn `json:"columns"`
	RowCount           int                    `json:"row_count"`
	SomeRows           []map[string]any       `json:"some_rows"`
	FullResultsSavedTo string                 `json:"full_results_saved_to,omitempty"`
	AlternateFormats   []ResultArtifact       `json:"alternate_formats,omitempty"`
}

// ArchiveResult confirms a query archive operation.
type ArchiveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	QueryID int    `json:"query_id"`
}

const previewRows = 20

// RegisterAssetDB adds the warehouse SQL tools. Write operations are only
// registered when configuration allows them.
func RegisterAssetDB(s *server.MCPServer, d *Deps) {
	s.AddTool(mcp.NewTool("assetdb_sql_info",
		mcp.WithDescription("Essential guide for AssetDB, the Stacklet cloud asset warehouse. Read "+
			"before writing SQL: several tables need careful filtering to avoid timeouts."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return infoResult(assetText("assetdb_sql_info.md"))
	})

	s.AddTool(mcp.NewTool("assetdb_sql_query",
		mcp.WithDescription("Execute ad hoc SQL against AssetDB. Use LIMIT clauses and indexed "+
			"filters; call assetdb_sql_info first. Returns the first 20 rows inline "+
			"and saves the full result to the downloads directory."),
		mcp.WithString("query", mcp.Required(), mcp.Description("SQL query string")),
		mcp.WithNumber("max_age", mcp.Description("Maximum age of cached results in seconds (-1 = any cached result, 0 = always fresh, default 3600)")),
		mcp.WithNumber("timeout", mcp.Description("Query execution timeout in seconds, 5-300 (default 60)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		query := stringArg(args, "query", "")
		if query == "" {
			return errResult(fmt.Errorf("query is required"))
		}
		maxAge := intArg(args, "max_age", 3600)
		timeout := intArg(args, "timeout", 60)
		if err := rangeErr("timeout", timeout, 5, 300); err != nil {
			return errResult(err)
		}

		client, err := d.AssetDB()
		if err != nil {
			return errResult(err)
		}
		result, err := client.ExecuteAdhocQuery(ctx, query, maxAge, true, time.Duration(timeout)*time.Second)
		if err != nil {
			return errResult(err)
		}
		return d.sqlResult(client, result, nil)
	})

	s.AddTool(mcp.NewTool("assetdb_query_list",
		mcp.WithDescription("Browse and search saved SQL queries. Use before writing new SQL: many "+
			"common questions already have a saved query."),
		mcp.WithNumber("page", mcp.Description("Page number, 1-based (default 1)")),
		mcp.WithNumber("page_size", mcp.Description("Queries per page, max 100 (default 25)")),
		mcp.WithString("search", mcp.Description("Search term matched against names, descriptions, and SQL")),
		mcp.WithArray("tags", mcp.Description("Tags to filter by; all must match"),
			mcp.Items(map[string]any{"type": "string"})),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		page := intArg(args, "page", 1)
		pageSize := intArg(args, "page_size", 25)
		if err := rangeErr("page_size", pageSize, 1, 100); err != nil {
			return errResult(err)
		}
		if page < 1 {
			return errResult(fmt.Errorf("page must be positive"))
		}
		tags, err := stringSliceArg(args, "tags")
		if err != nil {
			return errResult(err)
		}

		client, err := d.AssetDB()
		if err != nil {
			return errResult(err)
		}
		list, err := client.ListQueries(ctx, page, pageSize, stringArg(args, "search", ""), tags)
		if err != nil {
			return errResult(err)
		}

		result := QueryListResult{
			Queries: make([]QueryListItem, 0, len(list.Results)),
			Pagination: QueryListPagination{
				Page:        list.Page,
				PageSize:    list.PageSize,
				HasNextPage: page*pageSize < list.Count,
				TotalCount:  list.Count,
			},
		}
		for _, q := range list.Results {
			result.Queries = append(result.Queries, QueryListItem{
				ID:            q.ID,
				Name:          q.Name,
				Description:   q.Description,
				HasParameters: q.HasParameters(),
				DataSourceID:  q.DataSourceID,
				IsDraft:       q.IsDraft,
				IsFavorite:    q.IsFavorite,
				Tags:          q.Tags,
				User:          q.Owner(),
			})
		}
		return jsonResult(result)
	})

	s.AddTool(mcp.NewTool("assetdb_query_get",
		mcp.WithDescription("Get full details of a saved query: SQL text, parameter definitions, "+
			"tags, and metadata. Use assetdb_query_result to execute it."),
		mcp.WithNumber("query_id", mcp.Required(), mcp.Description("ID of the query to retrieve")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := intArg(req.GetArguments(), "query_id", 0)
		if id < 1 {
			return errResult(fmt.Errorf("query_id must be positive"))
		}
		client, err := d.AssetDB()
		if err != nil {
			return errResult(err)
		}
		query, err := client.GetQuery(ctx, id)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(query)
	})

	s.AddTool(mcp.NewTool("assetdb_query_result",
		mcp.WithDescription("Execute a saved query and return its results, using cached results "+
			"when fresh enough. Check the query's parameters with assetdb_query_get "+
			"first. Returns the first 20 rows inline plus download URLs per format."),
		mcp.WithNumber("query_id", mcp.Required(), mcp.Description("ID of the query to execute")),
		mcp.WithNumber("max_age", mcp.Description("Maximum age of cached results in seconds (-1 = any cached result, 0 = always fresh, default -1)")),
		mcp.WithNumber("timeout", mcp.Description("Execution timeout in seconds if not cached, 5-300 (default 60)")),
		mcp.WithObject("parameters", mcp.Description("Parameter values for parameterized queries")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		id := intArg(args, "query_id", 0)
		if id < 1 {
			return errResult(fmt.Errorf("query_id must be positive"))
		}
		maxAge := intArg(args, "max_age", -1)
		timeout := intArg(args, "timeout", 60)
		if err := rangeErr("timeout", timeout, 5, 300); err != nil {
			return errResult(err)
		}
		var parameters map[string]any
		if err := structuredArg(args, "parameters", &parameters); err != nil {
			return errResult(err)
		}

		client, err := d.AssetDB()
		if err != nil {
			return errResult(err)
		}
		result, err := client.ExecuteSavedQuery(ctx, id, parameters, maxAge, time.Duration(timeout)*time.Second)
		if err != nil {
			return errResult(err)
		}
		query, err := client.GetQuery(ctx, id)
		if err != nil {
			return errResult(err)
		}
		return d.sqlResult(client, result, query)
	})

	if d.Config.AssetDBAllowSave {
		s.AddTool(mcp.NewTool("assetdb_query_save",
			mcp.WithDescription("Save a new query or update an existing one. New queries start as "+
				"drafts; set is_draft=false to publish. When updating, only the "+
				"provided fields change."),
			mcp.WithNumber("query_id", mcp.Description("ID of an existing query to update; omit to create")),
			mcp.WithString("name", mcp.Description("Display name (required for new queries)")),
			mcp.WithString("query", mcp.Description("SQL query text (required for new queries)")),
			mcp.WithString("description", mcp.Description("Description or documentation")),
			mcp.WithArray("tags", mcp.Description("Tags for categorizing the query"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithObject("options", mcp.Description("Query options including parameter definitions")),
			mcp.WithBoolean("is_draft", mcp.Description("Whether the query should be a draft")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			upsert := assetdb.QueryUpsert{
				Name:        stringArg(args, "name", ""),
				Query:       stringArg(args, "query", ""),
				Description: stringArg(args, "description", ""),
			}
			var err error
			if upsert.Tags, err = stringSliceArg(args, "tags"); err != nil {
				return errResult(err)
			}
			if err := structuredArg(args, "options", &upsert.Options); err != nil {
				return errResult(err)
			}
			if _, ok := args["is_draft"]; ok {
				isDraft := boolArg(args, "is_draft", true)
				upsert.IsDraft = &isDraft
			}

			client, err := d.AssetDB()
			if err != nil {
				return errResult(err)
			}
			id := intArg(args, "query_id", 0)
			var query *assetdb.Query
			if id > 0 {
				query, err = client.UpdateQuery(ctx, id, upsert)
			} else {
				if upsert.Name == "" {
					upsert.Name = "Untitled LLM Query"
				}
				query, err = client.CreateQuery(ctx, upsert)
			}
			if err != nil {
				return errResult(err)
			}
			return jsonResult(query)
		})
	}

	if d.Config.AssetDBAllowArchive {
		s.AddTool(mcp.NewTool("assetdb_query_archive",
			mcp.WithDescription("Archive a saved query. Archived queries disappear from listings but "+
				"stay in the database; the operation cannot be undone through the API."),
			mcp.WithNumber("query_id", mcp.Required(), mcp.Description("ID of the query to archive")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id := intArg(req.GetArguments(), "query_id", 0)
			if id < 1 {
				return errResult(fmt.Errorf("query_id must be positive"))
			}
			client, err := d.AssetDB()
			if err != nil {
				return errResult(err)
			}
			if err := client.ArchiveQuery(ctx, id); err != nil {
				return errResult(err)
			}
			return jsonResult(ArchiveResult{
				Success: true,
				Message: fmt.Sprintf("Query %d has been successfully archived", id),
				QueryID: id,
			})
		})
	}
}

// sqlResult trims a query result for the caller, saving the full data set to
// the downloads directory. A non-nil query also yields per-format download
// URLs authenticated by the query's API key.
func (d *Deps) sqlResult(client *assetdb.Client, result *assetdb.QueryResult, query *assetdb.Query) (*mcp.CallToolResult, error) {
	out := SQLResult{
		ResultID:       result.ID,
		QueryText:      result.Query,
		QueryRuntime:   result.Runtime,
		QueryTimestamp: result.RetrievedAt,
		Columns:        result.Data.Columns,
		RowCount:       len(result.Data.Rows),
		SomeRows:       result.Data.Rows,
	}
	if len(out.SomeRows) > previewRows {
		out.SomeRows = out.SomeRows[:previewRows]
	}

	identity := fmt.Sprintf("%d", result.ID)
	if query != nil {
		out.QueryID = &query.ID
		identity = fmt.Sprintf("%d_%d", query.ID, result.ID)
		urls := client.ResultURLs(query, result.ID)
		for _, format := range assetdb.ExportFormats {
			out.AlternateFormats = append(out.AlternateFormats, ResultArtifact{
				Format:       format,
				DownloadFrom: urls[format],
			})
		}
	}

	path, err := d.saveFullResult(identity, result)
	if err != nil {
		d.Logger.Warn("saving full query result failed", "error", err)
	} else {
		out.FullResultsSavedTo = path
	}
	return jsonResult(out)
}

func (d *Deps) saveFullResult(identity string, result *assetdb.QueryResult) (string, error) {
	if err := os.MkdirAll(d.Config.DownloadsPath, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(d.Config.DownloadsPath, "assetdb_"+identity+"_*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(result); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
