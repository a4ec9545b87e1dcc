package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterDocs adds the documentation tools.
func RegisterDocs(s *server.MCPServer, d *Deps) {
	s.AddTool(mcp.NewTool("docs_list",
		mcp.WithDescription("List available Stacklet documentation files for this deployment. "+
			"Start with the recommended file, then fetch others by path with docs_read."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := d.Docs()
		if err != nil {
			return errResult(err)
		}
		list, err := client.Index(ctx)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(list)
	})

	s.AddTool(mcp.NewTool("docs_read",
		mcp.WithDescription("Read one Stacklet documentation file by the path listed in docs_list."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the documentation file")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := stringArg(req.GetArguments(), "path", "")
		if path == "" {
			return errResult(fmt.Errorf("path is required"))
		}
		client, err := d.Docs()
		if err != nil {
			return errResult(err)
		}
		content, err := client.Read(ctx, path)
		if err != nil {
			return errResult(err)
		}
		return jsonResult(content)
	})
}
