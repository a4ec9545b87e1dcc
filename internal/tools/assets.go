package tools

import "embed"

//go:embed assets/*.md
var assetFS embed.FS

// assetText returns an embedded guide by name. Missing assets are a build
// defect, not a runtime condition.
func assetText(name string) string {
	data, err := assetFS.ReadFile("assets/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// ServerInstructions is the top-level guidance sent with the MCP handshake.
func ServerInstructions() string {
	return assetText("mcp_info.md")
}
