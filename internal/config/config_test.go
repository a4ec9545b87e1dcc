package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stacklet/mcp-server/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.DownloadsPath == "" {
		t.Error("DownloadsPath should default to the temp dir")
	}
	if cfg.ArtifactBucket != "stacklet-mcp-exports" {
		t.Errorf("ArtifactBucket = %q", cfg.ArtifactBucket)
	}
	if cfg.AssetDBDatasource != 1 {
		t.Errorf("AssetDBDatasource = %d", cfg.AssetDBDatasource)
	}
	if cfg.ExportPageSize != 100 {
		t.Errorf("ExportPageSize = %d", cfg.ExportPageSize)
	}
	if cfg.AssetDBAllowSave || cfg.AssetDBAllowArchive || cfg.PlatformAllowMutations || cfg.Debug {
		t.Error("write and debug settings must default to off")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STACKLET_MCP_DOWNLOADS_PATH", "/tmp/stacklet-downloads")
	t.Setenv("STACKLET_MCP_ASSETDB_DATASOURCE", "7")
	t.Setenv("STACKLET_MCP_ASSETDB_ALLOW_SAVE", "true")
	t.Setenv("STACKLET_MCP_PLATFORM_ALLOW_MUTATIONS", "true")
	t.Setenv("STACKLET_MCP_EXPORT_PAGE_SIZE", "250")
	t.Setenv("STACKLET_MCP_DEBUG", "1")

	cfg := config.Load()
	if cfg.DownloadsPath != "/tmp/stacklet-downloads" {
		t.Errorf("DownloadsPath = %q", cfg.DownloadsPath)
	}
	if cfg.AssetDBDatasource != 7 {
		t.Errorf("AssetDBDatasource = %d", cfg.AssetDBDatasource)
	}
	if !cfg.AssetDBAllowSave || !cfg.PlatformAllowMutations || !cfg.Debug {
		t.Error("boolean settings not honored")
	}
	if cfg.ExportPageSize != 250 {
		t.Errorf("ExportPageSize = %d", cfg.ExportPageSize)
	}
}

func TestLoadIgnoresGarbageValues(t *testing.T) {
	t.Setenv("STACKLET_MCP_ASSETDB_DATASOURCE", "lots")
	t.Setenv("STACKLET_MCP_DEBUG", "sometimes")

	cfg := config.Load()
	if cfg.AssetDBDatasource != 1 {
		t.Errorf("AssetDBDatasource = %d, want the default", cfg.AssetDBDatasource)
	}
	if cfg.Debug {
		t.Error("unparseable booleans should fall back to the default")
	}
}

func TestDownloadFile(t *testing.T) {
	t.Setenv("STACKLET_MCP_DOWNLOADS_PATH", "/data/downloads")
	cfg := config.Load()
	if got := cfg.DownloadFile("result.json"); got != filepath.Join("/data/downloads", "result.json") {
		t.Errorf("DownloadFile = %q", got)
	}
}
