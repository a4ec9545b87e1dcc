// Package server assembles the MCP server from configuration.
package server

import (
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/stacklet/mcp-server/internal/config"
	"github.com/stacklet/mcp-server/internal/metric"
	"github.com/stacklet/mcp-server/internal/tools"
)

const (
	// Name identifies the server in the MCP handshake.
	Name = "Stacklet"

	// Version is the server version reported to clients.
	Version = "0.9.0"
)

// New builds the MCP server with all enabled toolsets registered.
func New(cfg *config.Config, logger *slog.Logger, metrics *metric.Metrics) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(Name, Version,
		mcpserver.WithInstructions(tools.ServerInstructions()),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	deps := tools.NewDeps(cfg, logger, metrics)
	tools.RegisterPlatform(s, deps)
	tools.RegisterAssetDB(s, deps)
	tools.RegisterDocs(s, deps)
	return s
}

// ServeStdio runs the server over stdin/stdout until the client disconnects.
func ServeStdio(s *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(s)
}
