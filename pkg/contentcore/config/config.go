// Package config loads the server configuration from the environment and
// wires the content services together.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/assetproc"
	"github.com/modularcms/content-core/pkg/contentcore/blob"
	blobfs "github.com/modularcms/content-core/pkg/contentcore/blob/fs"
	blobmemory "github.com/modularcms/content-core/pkg/contentcore/blob/memory"
	blobs3 "github.com/modularcms/content-core/pkg/contentcore/blob/s3"
	"github.com/modularcms/content-core/pkg/contentcore/docstore"
	storememory "github.com/modularcms/content-core/pkg/contentcore/docstore/memory"
	storepg "github.com/modularcms/content-core/pkg/contentcore/docstore/postgres"
	"github.com/modularcms/content-core/pkg/contentcore/provider/internalstorage"
	"github.com/modularcms/content-core/pkg/contentcore/resultcache"
	"github.com/modularcms/content-core/pkg/contentcore/urlrewrite"
)

// ProviderInternalStorage is the name the reference provider registers
// under.
const ProviderInternalStorage = "internal-storage"

// ServerConfig is the full server configuration, loaded from environment
// variables.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Provider selects the active content provider by registry name.
	Provider string `env:"CONTENT_PROVIDER" env-default:"internal-storage"`

	// DatabaseURL switches the document store to PostgreSQL when set;
	// empty means in-memory collections.
	DatabaseURL string `env:"DATABASE_URL"`

	DefaultLocale string `env:"DEFAULT_LOCALE" env-default:"en"`
	APIBasePath   string `env:"API_BASE_PATH" env-default:"/api/content"`
	CDNHost       string `env:"CDN_HOST"`
	JWTSecret     string `env:"JWT_SECRET"`

	Storage StorageConfig
	Cache   CacheConfig
	Assets  AssetConfig
}

// StorageConfig selects and configures the blob backend for asset payloads.
type StorageConfig struct {
	Backend string `env:"STORAGE_BACKEND" env-default:"memory"` // memory, fs, s3
	BaseDir string `env:"STORAGE_BASE_DIR" env-default:"./data/assets"`

	S3Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	S3Bucket          string `env:"AWS_S3_BUCKET"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"AWS_S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucket    bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// CacheConfig configures the content result cache.
type CacheConfig struct {
	Enabled    bool          `env:"RESULT_CACHE_ENABLED" env-default:"true"`
	MaxEntries int           `env:"RESULT_CACHE_MAX_ENTRIES" env-default:"1000"`
	TTL        time.Duration `env:"RESULT_CACHE_TTL" env-default:"30s"`
}

// AssetConfig configures the asset processing pipeline.
type AssetConfig struct {
	ScaleUp        bool          `env:"IMAGE_SCALE_UP" env-default:"false"`
	DefaultQuality int           `env:"IMAGE_DEFAULT_QUALITY" env-default:"75"`
	CacheEnabled   bool          `env:"ASSET_CACHE_ENABLED" env-default:"true"`
	CacheTTL       time.Duration `env:"ASSET_CACHE_TTL" env-default:"30m"`
	CacheDir       string        `env:"ASSET_CACHE_DIR" env-default:"./data/asset-cache"`
	Workers        int           `env:"ASSET_WORKERS" env-default:"2"`
	FetchTimeout   time.Duration `env:"ASSET_FETCH_TIMEOUT" env-default:"30s"`
}

// Load reads the configuration from the environment.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.Storage.Backend {
	case "memory", "fs":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("AWS_S3_BUCKET is required when using s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
	if c.Provider != ProviderInternalStorage {
		return fmt.Errorf("unknown content provider: %s", c.Provider)
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
// Development mode bypasses the result cache.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// Services bundles everything BuildServices wires up.
type Services struct {
	Service   contentcore.Service
	Registry  *contentcore.Registry
	Rewriter  *urlrewrite.Service
	AssetProc *assetproc.Service
	Cache     *resultcache.Cache
}

// BuildServices constructs the document store, blob store, provider,
// rewrite service, result cache and orchestration service from the
// configuration.
func (c *ServerConfig) BuildServices(ctx context.Context, logger *slog.Logger) (*Services, error) {
	store, err := c.buildDocStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build document store: %w", err)
	}

	blobs, err := c.buildBlobStore()
	if err != nil {
		return nil, fmt.Errorf("failed to build blob store: %w", err)
	}

	provider := internalstorage.New(store, blobs, logger)
	registry := contentcore.NewRegistry()
	registry.Register(ProviderInternalStorage, provider)

	rewriter := urlrewrite.New(provider, urlrewrite.Config{
		APIBasePath: c.APIBasePath,
		CDNHost:     c.CDNHost,
	}, logger)

	options := []contentcore.Option{
		contentcore.WithRegistry(registry, c.Provider),
		contentcore.WithURLRewriter(rewriter),
		contentcore.WithDevMode(c.IsDevelopment()),
		contentcore.WithLogger(logger),
	}
	var cache *resultcache.Cache
	if c.Cache.Enabled {
		cache = resultcache.New(c.Cache.MaxEntries, c.Cache.TTL)
		options = append(options, contentcore.WithResultCache(cache))
	}

	service, err := contentcore.NewService(options...)
	if err != nil {
		return nil, err
	}

	proc, err := assetproc.New(assetproc.Config{
		ScaleUp:        c.Assets.ScaleUp,
		DefaultQuality: c.Assets.DefaultQuality,
		CacheEnabled:   c.Assets.CacheEnabled,
		CacheTTL:       c.Assets.CacheTTL,
		CacheDir:       c.Assets.CacheDir,
		Workers:        c.Assets.Workers,
		FetchTimeout:   c.Assets.FetchTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build asset processing service: %w", err)
	}
	if c.Storage.Backend == "memory" {
		// Memory blob locators are not fetchable over file or HTTP, so
		// asset delivery goes straight through the store.
		proc.RegisterResolver(blobmemory.Scheme, blobSourceResolver(blobs, blobmemory.Scheme))
	}

	return &Services{
		Service:   service,
		Registry:  registry,
		Rewriter:  rewriter,
		AssetProc: proc,
		Cache:     cache,
	}, nil
}

// blobSourceResolver adapts a blob store into an asset source resolver for
// its URI scheme.
func blobSourceResolver(store blob.Store, scheme string) assetproc.SourceResolver {
	return func(ctx context.Context, sourceURI string) (*assetproc.Result, error) {
		key := strings.TrimPrefix(sourceURI, scheme+"://")
		meta, err := store.GetObjectMeta(ctx, key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", assetproc.ErrAssetNotFound, sourceURI)
			}
			return nil, err
		}
		stream, err := store.Download(ctx, key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", assetproc.ErrAssetNotFound, sourceURI)
			}
			return nil, err
		}
		return &assetproc.Result{
			Stream: stream,
			Meta: assetproc.Meta{
				Size:     meta.Size,
				MimeType: meta.ContentType,
				FileName: path.Base(key),
			},
		}, nil
	}
}

func (c *ServerConfig) buildDocStore(ctx context.Context) (docstore.Store, error) {
	if c.DatabaseURL == "" {
		return storememory.New(), nil
	}
	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	store := storepg.NewWithPool(pool)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (c *ServerConfig) buildBlobStore() (blob.Store, error) {
	switch c.Storage.Backend {
	case "memory":
		return blobmemory.New(), nil
	case "fs":
		return blobfs.New(blobfs.Config{BaseDir: c.Storage.BaseDir})
	case "s3":
		return blobs3.New(blobs3.Config{
			Region:                 c.Storage.S3Region,
			Bucket:                 c.Storage.S3Bucket,
			AccessKeyID:            c.Storage.S3AccessKeyID,
			SecretAccessKey:        c.Storage.S3SecretAccessKey,
			Endpoint:               c.Storage.S3Endpoint,
			UsePathStyle:           c.Storage.S3UsePathStyle,
			CreateBucketIfNotExist: c.Storage.S3CreateBucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}
}
