package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/stacklet/mcp-server/internal/export"
	"github.com/stacklet/mcp-server/internal/platform"
)

// ListTypesResult reports a schema type search.
type ListTypesResult struct {
	SearchedFor string   `json:"searched_for,omitempty"`
	FoundTypes  []string `json:"found_types"`
}

// GetTypesResult reports SDL lookups for a set of type names.
type GetTypesResult struct {
	AskedFor []string          `json:"asked_for"`
	FoundSDL map[string]string `json:"found_sdl"`
	NotFound []string          `json:"not_found"`
}

// QueryToolResult echoes a GraphQL execution back to the caller.
type QueryToolResult struct {
	Query     string                `json:"query"`
	Variables map[string]any        `json:"variables"`
	Data      map[string]any        `json:"data,omitempty"`
	Errors    []platform.QueryError `json:"errors,omitempty"`
}

// RegisterPlatform adds the platform GraphQL and dataset export tools.
func RegisterPlatform(s *server.MCPServer, d *Deps) {
	s.AddTool(mcp.NewTool("platform_graphql_info",
		mcp.WithDescription("Essential guide for the Stacklet Platform GraphQL API. Read this first: "+
			"it explains schema introspection, connection pagination, and filtering syntax."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return infoResult(assetText("platform_graphql_info.md"))
	})

	s.AddTool(mcp.NewTool("platform_graphql_list_types",
		mcp.WithDescription("Discover available GraphQL types in the Stacklet Platform API. "+
			"Optionally filter by a regular expression, e.g. \"Account.*\"."),
		mcp.WithString("match", mcp.Description("Optional regular expression to filter type names")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := d.snapshot(ctx)
		if err != nil {
			return errResult(err)
		}
		match := stringArg(req.GetArguments(), "match", "")
		names, err := snap.TypeNames(match)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(ListTypesResult{SearchedFor: match, FoundTypes: names})
	})

	s.AddTool(mcp.NewTool("platform_graphql_get_types",
		mcp.WithDescription("Get GraphQL SDL definitions for named types: fields, arguments, and "+
			"relationships. Use after platform_graphql_list_types to plan queries."),
		mcp.WithArray("type_names", mcp.Required(),
			mcp.Description("Type names to retrieve SDL definitions for"),
			mcp.Items(map[string]any{"type": "string"})),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := stringSliceArg(req.GetArguments(), "type_names")
		if err != nil {
			return errResult(err)
		}
		if len(names) == 0 {
			return errResult(fmt.Errorf("type_names must not be empty"))
		}
		snap, err := d.snapshot(ctx)
		if err != nil {
			return errResult(err)
		}

		result := GetTypesResult{
			AskedFor: names,
			FoundSDL: make(map[string]string),
			NotFound: []string{},
		}
		for _, name := range names {
			if sdl, ok := snap.TypeSDL(name); ok {
				result.FoundSDL[name] = sdl
			} else {
				result.NotFound = append(result.NotFound, name)
			}
		}
		return jsonResult(result)
	})

	s.AddTool(mcp.NewTool("platform_graphql_query",
		mcp.WithDescription("Execute a GraphQL query against the Stacklet Platform. Always select "+
			"problems alongside connection data, and keep exploratory page sizes small. "+
			"For bulk data use platform_dataset_export instead."),
		mcp.WithString("query", mcp.Required(), mcp.Description("GraphQL query string")),
		mcp.WithObject("variables", mcp.Description("Variables to pass to the query")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		query := stringArg(args, "query", "")
		if query == "" {
			return errResult(fmt.Errorf("query is required"))
		}
		var variables map[string]any
		if err := structuredArg(args, "variables", &variables); err != nil {
			return errResult(err)
		}
		if err := d.checkMutation(query); err != nil {
			return errResult(err)
		}

		client, err := d.Platform()
		if err != nil {
			return errResult(err)
		}
		result, err := client.Execute(ctx, query, variables)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(QueryToolResult{
			Query:     query,
			Variables: variables,
			Data:      result.Data,
			Errors:    result.Errors,
		})
	})

	s.AddTool(mcp.NewTool("platform_dataset_info",
		mcp.WithDescription("Guide for exporting large datasets from the Stacklet Platform. Read "+
			"before using platform_dataset_export."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return infoResult(assetText("platform_dataset_info.md"))
	})

	s.AddTool(mcp.NewTool("platform_dataset_export",
		mcp.WithDescription("Export a GraphQL connection to CSV. The engine pages through the whole "+
			"connection and publishes a download URL. Runs asynchronously: timeout=0 "+
			"returns a dataset_id immediately for platform_dataset_lookup polling."),
		mcp.WithString("connection_field", mcp.Required(),
			mcp.Description("Name of the connection field to export")),
		mcp.WithArray("columns", mcp.Required(),
			mcp.Description("Output columns: objects with name, path, and optional subpath (JMESPath)"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithString("node_id", mcp.Description("Optional node ID to root the export at instead of the query root")),
		mcp.WithArray("params", mcp.Description("Extra connection arguments: objects with name, type, value"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithObject("filter", mcp.Description("Optional filterElement value for the connection")),
		mcp.WithNumber("row_limit", mcp.Description("Optional maximum number of rows to export")),
		mcp.WithNumber("timeout", mcp.Description("Seconds to wait for completion, 0-600 (0 = return immediately)")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		request := export.Request{
			ConnectionField: stringArg(args, "connection_field", ""),
			NodeID:          stringArg(args, "node_id", ""),
			PageSize:        d.Config.ExportPageSize,
			RowLimit:        intArg(args, "row_limit", 0),
		}
		if err := structuredArg(args, "columns", &request.Columns); err != nil {
			return errResult(err)
		}
		if err := structuredArg(args, "params", &request.Params); err != nil {
			return errResult(err)
		}
		if err := structuredArg(args, "filter", &request.Filter); err != nil {
			return errResult(err)
		}
		timeout := intArg(args, "timeout", 0)
		if err := rangeErr("timeout", timeout, 0, 600); err != nil {
			return errResult(err)
		}

		store, err := d.Exports()
		if err != nil {
			return errResult(err)
		}
		client, err := d.Platform()
		if err != nil {
			return errResult(err)
		}

		snap, err := store.Start(client, client.Identity(), request)
		if err != nil {
			return errResult(err)
		}
		if timeout > 0 {
			snap, err = store.Await(snap.DatasetID, time.Duration(timeout)*time.Second)
			if err != nil {
				return errResult(err)
			}
		}
		return jsonResult(snap)
	})

	s.AddTool(mcp.NewTool("platform_dataset_lookup",
		mcp.WithDescription("Check progress of a dataset export and retrieve its download URL when "+
			"complete. timeout=0 returns current status immediately; a positive "+
			"timeout waits up to that many seconds for completion."),
		mcp.WithString("dataset_id", mcp.Required(),
			mcp.Description("Dataset export ID returned from platform_dataset_export")),
		mcp.WithNumber("timeout", mcp.Description("Seconds to wait for completion, 0-600")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		id := stringArg(args, "dataset_id", "")
		if id == "" {
			return errResult(fmt.Errorf("dataset_id is required"))
		}
		timeout := intArg(args, "timeout", 0)
		if err := rangeErr("timeout", timeout, 0, 600); err != nil {
			return errResult(err)
		}

		store, err := d.Exports()
		if err != nil {
			return errResult(err)
		}
		snap, err := store.Await(id, time.Duration(timeout)*time.Second)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(snap)
	})
}

// snapshot fetches the cached schema for the configured deployment.
func (d *Deps) snapshot(ctx context.Context) (*platform.Snapshot, error) {
	client, err := d.Platform()
	if err != nil {
		return nil, err
	}
	return d.schemas.Get(ctx, client, client.Identity())
}

// checkMutation rejects mutation (and subscription) operations unless the
// server was configured to allow them. Queries that do not parse are passed
// through; the platform produces better syntax errors than we would.
func (d *Deps) checkMutation(query string) error {
	if d.Config.PlatformAllowMutations {
		return nil
	}
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil
	}
	for _, op := range doc.Operations {
		if op.Operation != ast.Query {
			return fmt.Errorf("%s operations are disabled; start the server with "+
				"STACKLET_MCP_PLATFORM_ALLOW_MUTATIONS=true to enable them", op.Operation)
		}
	}
	return nil
}
