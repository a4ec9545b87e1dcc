package tools

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/stacklet/mcp-server/internal/artifact"
	"github.com/stacklet/mcp-server/internal/assetdb"
	"github.com/stacklet/mcp-server/internal/auth"
	"github.com/stacklet/mcp-server/internal/config"
	"github.com/stacklet/mcp-server/internal/docs"
	"github.com/stacklet/mcp-server/internal/export"
	"github.com/stacklet/mcp-server/internal/metric"
	"github.com/stacklet/mcp-server/internal/platform"
)

// Deps holds the shared clients behind the tool handlers. Clients are built
// lazily on first use so that the server can start (and list its tools)
// before the user has logged in; credential problems surface as tool errors.
type Deps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metric.Metrics

	mu       sync.Mutex
	creds    *auth.Credentials
	platform *platform.Client
	schemas  *platform.Cache
	exports  *export.Store
	assetdb  *assetdb.Client
	docs     *docs.Client
}

// NewDeps creates the dependency container for tool registration.
func NewDeps(cfg *config.Config, logger *slog.Logger, metrics *metric.Metrics) *Deps {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deps{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		schemas: platform.NewCache(),
	}
}

// credentials loads and caches Stacklet credentials, warning once about
// expired tokens rather than refusing to proceed.
func (d *Deps) credentials() (auth.Credentials, error) {
	if d.creds != nil {
		return *d.creds, nil
	}
	creds, err := auth.Load("")
	if err != nil {
		return auth.Credentials{}, err
	}
	if err := creds.CheckExpiry(time.Now()); err != nil {
		d.Logger.Warn("credential check", "error", err)
	}
	d.creds = &creds
	return creds, nil
}

// Platform returns the shared GraphQL client.
func (d *Deps) Platform() (*platform.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.platform == nil {
		creds, err := d.credentials()
		if err != nil {
			return nil, err
		}
		d.platform = platform.NewClient(creds, nil)
	}
	return d.platform, nil
}

// Schemas returns the shared schema snapshot cache.
func (d *Deps) Schemas() *platform.Cache {
	return d.schemas
}

// Exports returns the shared export job store, building the artifact store
// from configuration on first use.
func (d *Deps) Exports() (*export.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.exports == nil {
		store, err := d.artifactStore()
		if err != nil {
			return nil, fmt.Errorf("configure artifact store: %w", err)
		}
		d.exports = export.NewStore(d.schemas, store, d.Config.DownloadsPath, d.Logger, d.Metrics)
	}
	return d.exports, nil
}

func (d *Deps) artifactStore() (artifact.Store, error) {
	if d.Config.ArtifactEndpoint == "" {
		return artifact.NewLocalStore(filepath.Join(d.Config.DownloadsPath, "exports"), 0), nil
	}
	return artifact.NewS3Store(artifact.S3Config{
		EndpointURL:     d.Config.ArtifactEndpoint,
		AccessKeyID:     d.Config.ArtifactAccessKey,
		SecretAccessKey: d.Config.ArtifactSecretKey,
		Bucket:          d.Config.ArtifactBucket,
		Region:          d.Config.ArtifactRegion,
	})
}

// AssetDB returns the shared warehouse client.
func (d *Deps) AssetDB() (*assetdb.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.assetdb == nil {
		creds, err := d.credentials()
		if err != nil {
			return nil, err
		}
		d.assetdb = assetdb.NewClient(creds, d.Config.AssetDBDatasource, nil, d.Metrics)
	}
	return d.assetdb, nil
}

// Docs returns the shared documentation client.
func (d *Deps) Docs() (*docs.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.docs == nil {
		creds, err := d.credentials()
		if err != nil {
			return nil, err
		}
		d.docs = docs.NewClient(creds, nil)
	}
	return d.docs, nil
}
