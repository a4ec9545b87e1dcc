// Package config provides configuration management for the MCP server.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all server settings, loaded from STACKLET_MCP_* environment
// variables with sensible defaults.
type Config struct {
	// DownloadsPath is where full query results and export staging files land.
	DownloadsPath string

	// Artifact store settings. When ArtifactEndpoint is empty, exports are
	// published to a local directory under DownloadsPath instead of S3.
	ArtifactEndpoint  string
	ArtifactAccessKey string
	ArtifactSecretKey string
	ArtifactBucket    string
	ArtifactRegion    string

	// AssetDB settings
	AssetDBDatasource   int
	AssetDBAllowSave    bool
	AssetDBAllowArchive bool

	// Platform settings
	PlatformAllowMutations bool
	ExportPageSize         int

	// MetricsAddr, when set, serves prometheus metrics on that address.
	MetricsAddr string

	// Debug enables verbose logging.
	Debug bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		DownloadsPath: getEnv("STACKLET_MCP_DOWNLOADS_PATH", os.TempDir()),

		ArtifactEndpoint:  getEnv("STACKLET_MCP_ARTIFACT_ENDPOINT", ""),
		ArtifactAccessKey: getEnv("STACKLET_MCP_ARTIFACT_ACCESS_KEY", ""),
		ArtifactSecretKey: getEnv("STACKLET_MCP_ARTIFACT_SECRET_KEY", ""),
		ArtifactBucket:    getEnv("STACKLET_MCP_ARTIFACT_BUCKET", "stacklet-mcp-exports"),
		ArtifactRegion:    getEnv("STACKLET_MCP_ARTIFACT_REGION", ""),

		AssetDBDatasource:   getEnvInt("STACKLET_MCP_ASSETDB_DATASOURCE", 1),
		AssetDBAllowSave:    getEnvBool("STACKLET_MCP_ASSETDB_ALLOW_SAVE", false),
		AssetDBAllowArchive: getEnvBool("STACKLET_MCP_ASSETDB_ALLOW_ARCHIVE", false),

		PlatformAllowMutations: getEnvBool("STACKLET_MCP_PLATFORM_ALLOW_MUTATIONS", false),
		ExportPageSize:         getEnvInt("STACKLET_MCP_EXPORT_PAGE_SIZE", 100),

		MetricsAddr: getEnv("STACKLET_MCP_METRICS_ADDR", ""),

		Debug: getEnvBool("STACKLET_MCP_DEBUG", false),
	}
}

// DownloadFile returns a path under DownloadsPath for a named artifact.
func (c *Config) DownloadFile(name string) string {
	return filepath.Join(c.DownloadsPath, name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
