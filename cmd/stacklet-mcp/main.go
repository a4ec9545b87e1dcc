// Command stacklet-mcp runs the Stacklet MCP server over stdio.
//
// Subcommands:
//
//	stacklet-mcp                          run the server (default)
//	stacklet-mcp run                      run the server
//	stacklet-mcp agent-config list       list agent config profiles
//	stacklet-mcp agent-config generate <profile>
//	                                      print .mcp.json content for a profile
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"

	"github.com/stacklet/mcp-server/internal/config"
	"github.com/stacklet/mcp-server/internal/metric"
	"github.com/stacklet/mcp-server/internal/server"
)

// profiles map agent config profile names to the environment they set.
var profiles = map[string]map[string]string{
	"default": {},
	"unrestricted": {
		"STACKLET_MCP_ASSETDB_ALLOW_SAVE":       "true",
		"STACKLET_MCP_ASSETDB_ALLOW_ARCHIVE":    "true",
		"STACKLET_MCP_PLATFORM_ALLOW_MUTATIONS": "true",
	},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return serve()
	}
	switch args[0] {
	case "run":
		return serve()
	case "agent-config":
		return agentConfig(args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve() error {
	cfg := config.Load()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	// stdout carries the MCP protocol; everything else goes to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	metrics := metric.New()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	return server.ServeStdio(server.New(cfg, logger, metrics))
}

func agentConfig(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("agent-config requires a subcommand: list, generate")
	}
	switch args[0] {
	case "list":
		names := make([]string, 0, len(profiles))
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("Available profiles:")
		for _, name := range names {
			fmt.Println(" -", name)
		}
		return nil
	case "generate":
		if len(args) < 2 {
			return fmt.Errorf("usage: agent-config generate <profile>")
		}
		return generateConfig(args[1])
	default:
		return fmt.Errorf("unknown agent-config subcommand %q", args[0])
	}
}

func generateConfig(profile string) error {
	env, ok := profiles[profile]
	if !ok {
		return fmt.Errorf("unknown profile %q", profile)
	}

	command, err := os.Executable()
	if err != nil {
		command = os.Args[0]
	}

	entry := map[string]any{"command": command}
	if len(env) > 0 {
		entry["env"] = env
	}
	content := map[string]any{
		"mcpServers": map[string]any{
			"stacklet": entry,
		},
	}

	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
