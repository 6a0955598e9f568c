// Package assetproc fetches raw asset bytes from file or HTTP sources,
// optionally transforms images (resize, format conversion) and caches the
// output on disk. When caching is enabled an image transform never blocks
// the caller: the untransformed source is returned immediately and the
// transform runs on a background worker, guarded so at most one transform
// per cache key is in flight.
package assetproc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrAssetNotFound is returned when the source URI cannot be resolved.
var ErrAssetNotFound = errors.New("asset not found")

// SourceResolver opens the asset behind a custom URI scheme. Resolvers
// return ErrAssetNotFound (possibly wrapped) when the URI has no object.
type SourceResolver func(ctx context.Context, sourceURI string) (*Result, error)

// FitMode controls how an image is fitted into the requested dimensions.
type FitMode string

const (
	// FitCover scales to cover both dimensions and crops the overflow.
	FitCover FitMode = "cover"
	// FitContain scales to fit inside both dimensions, keeping the ratio.
	FitContain FitMode = "contain"
	// FitFill stretches to the exact dimensions.
	FitFill FitMode = "fill"
)

// Resize describes a resize request. Zero width or height means
// "derive from the aspect ratio". Fit defaults to cover.
type Resize struct {
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Fit    FitMode `json:"fit,omitempty"`
}

// Convert describes a format conversion request. Quality applies to lossy
// target formats and defaults to the service's configured quality.
type Convert struct {
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`
}

// Meta describes a fetched asset.
type Meta struct {
	Size     int64      `json:"size,omitempty"`
	MimeType string     `json:"mimeType,omitempty"`
	FileName string     `json:"fileName,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}

// Result is a fetched, possibly transformed asset. Callers close Stream.
type Result struct {
	Stream io.ReadCloser
	Meta   Meta
}

// Config holds the asset processing settings.
type Config struct {
	// ScaleUp allows resizing beyond the source dimensions.
	ScaleUp bool
	// DefaultQuality applies when a conversion does not specify one.
	DefaultQuality int
	// CacheEnabled turns the disk cache and background transforms on.
	CacheEnabled bool
	// CacheTTL is the fallback expiry when the source supplies none.
	CacheTTL time.Duration
	// CacheDir is the disk cache location.
	CacheDir string
	// Workers bounds the background transform pool.
	Workers int
	// FetchTimeout bounds remote fetches. Must be finite.
	FetchTimeout time.Duration
}

type transformJob struct {
	sourceURI string
	resize    *Resize
	convert   *Convert
	cacheKey  string
	cachePath string
}

// Service implements the asset fetch/transform/cache pipeline.
type Service struct {
	config Config
	logger *slog.Logger
	client *http.Client

	jobs      chan transformJob
	resolvers map[string]SourceResolver

	mu       sync.Mutex
	inFlight map[string]struct{}
	closed   bool
}

// New creates the service and starts its background workers when caching
// is enabled.
func New(config Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.DefaultQuality <= 0 {
		config.DefaultQuality = 75
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 30 * time.Minute
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 30 * time.Second
	}

	s := &Service{
		config:    config,
		logger:    logger.With("component", "assetproc"),
		client:    &http.Client{Timeout: config.FetchTimeout},
		resolvers: make(map[string]SourceResolver),
		inFlight:  make(map[string]struct{}),
	}

	if config.CacheEnabled {
		if config.CacheDir == "" {
			return nil, errors.New("cache directory is required when caching is enabled")
		}
		if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
			return nil, err
		}
		s.logger.Info("using asset cache folder", "dir", config.CacheDir)
		s.jobs = make(chan transformJob, config.Workers*4)
		for i := 0; i < config.Workers; i++ {
			go s.transformWorker()
		}
	}

	return s, nil
}

// RegisterResolver installs a resolver for a URI scheme, for example "mem"
// for blob stores whose locators are not externally fetchable. Register
// before serving requests.
func (s *Service) RegisterResolver(scheme string, resolver SourceResolver) {
	s.resolvers[scheme] = resolver
}

// Fetch resolves a source URI into an asset byte stream, applying the
// requested image transform. See the package comment for the caching and
// blocking behavior.
func (s *Service) Fetch(ctx context.Context, sourceURI string, resize *Resize, convert *Convert) (*Result, error) {
	var key, cachePath string
	if s.config.CacheEnabled {
		key = cacheKey(sourceURI, resize, convert)
		cachePath = filepath.Join(s.config.CacheDir, key)
		if cached := s.readCacheEntry(cachePath); cached != nil {
			return cached, nil
		}
	}

	asset, err := s.fetchSource(ctx, sourceURI)
	if err != nil {
		return nil, err
	}

	if wantsTransform(resize, convert) && strings.HasPrefix(asset.Meta.MimeType, "image/") {
		if !s.config.CacheEnabled {
			return s.transformAsset(asset, resize, convert)
		}
		// Serve the untransformed source now, transform in the background.
		s.dispatchTransform(transformJob{
			sourceURI: sourceURI,
			resize:    resize,
			convert:   convert,
			cacheKey:  key,
			cachePath: cachePath,
		})
		return asset, nil
	}

	if s.config.CacheEnabled {
		s.logger.Debug("putting asset to cache", "uri", sourceURI)
		asset.Stream = s.newCacheTeeReader(asset.Stream, cachePath, asset.Meta)
	}
	return asset, nil
}

// dispatchTransform enqueues a background transform unless one for the
// same key is already running or the queue is full.
func (s *Service) dispatchTransform(job transformJob) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, running := s.inFlight[job.cacheKey]; running {
		s.mu.Unlock()
		return
	}
	s.inFlight[job.cacheKey] = struct{}{}

	// The enqueue happens under the lock so Close cannot close the channel
	// between the closed check and the send.
	select {
	case s.jobs <- job:
		s.mu.Unlock()
	default:
		delete(s.inFlight, job.cacheKey)
		s.mu.Unlock()
		s.logger.Warn("transform queue full, skipping background transform", "uri", job.sourceURI)
	}
}

// Close stops the background workers. Already queued jobs still run; new
// dispatches are dropped.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if s.jobs != nil {
		close(s.jobs)
	}
}

func (s *Service) clearInFlight(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

func (s *Service) transformWorker() {
	for job := range s.jobs {
		s.runTransformJob(job)
	}
}

// runTransformJob re-fetches the source, transforms it and writes the cache
// entry. Failures are logged and the entry is simply not written, so the
// next request retries.
func (s *Service) runTransformJob(job transformJob) {
	defer s.clearInFlight(job.cacheKey)

	ctx, cancel := context.WithTimeout(context.Background(), 2*s.config.FetchTimeout)
	defer cancel()

	asset, err := s.fetchSource(ctx, job.sourceURI)
	if err != nil {
		s.logger.Error("background fetch failed", "uri", job.sourceURI, "error", err)
		return
	}
	result, err := s.transformAsset(asset, job.resize, job.convert)
	if err != nil {
		s.logger.Error("background transform failed", "uri", job.sourceURI, "error", err)
		return
	}
	defer result.Stream.Close()

	if err := s.writeCacheEntry(job.cachePath, result); err != nil {
		s.logger.Error("writing transformed asset to cache failed", "uri", job.sourceURI, "error", err)
		return
	}
	s.logger.Debug("cached transformed asset", "uri", job.sourceURI, "key", job.cacheKey)
}

func wantsTransform(resize *Resize, convert *Convert) bool {
	if resize != nil && (resize.Width > 0 || resize.Height > 0) {
		return true
	}
	return convert != nil && convert.Format != ""
}
