// Package tools defines the MCP tool surface: platform GraphQL access, the
// dataset export engine, AssetDB SQL, and documentation retrieval.
package tools

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolsetInfo wraps a usage guide with metadata nudging the caller to treat
// it as required reading.
type ToolsetInfo struct {
	Meta    map[string]string `json:"meta"`
	Content string            `json:"content"`
}

func infoResult(content string) (*mcp.CallToolResult, error) {
	return jsonResult(ToolsetInfo{
		Content: content,
		Meta: map[string]string{
			"importance":   "critical",
			"memorability": "high",
			"priority":     "top",
		},
	})
}

// jsonResult renders a tool response as indented JSON text.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errResult reports a tool-level failure without failing the protocol call.
func errResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

// Some models JSON-encode structured arguments as strings regardless of the
// advertised schema. The arg helpers below tolerate that: a string value is
// decoded as JSON before being interpreted.

// structuredArg decodes the named argument into out. Absent or null
// arguments leave out untouched.
func structuredArg(args map[string]any, key string, out any) error {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil
	}
	if s, ok := raw.(string); ok {
		if s == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(s), out); err != nil {
			return fmt.Errorf("argument %q: invalid JSON: %w", key, err)
		}
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("argument %q: %w", key, err)
	}
	return nil
}

func stringArg(args map[string]any, key, fallback string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	var out []string
	if err := structuredArg(args, key, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// rangeErr reports an out-of-bounds numeric argument.
func rangeErr(key string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("argument %q must be between %d and %d, got %d", key, min, max, value)
	}
	return nil
}
