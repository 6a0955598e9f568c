package contentcore

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// service implements the Service interface.
type service struct {
	registry     *Registry
	providerName string
	rewriter     URLRewriter
	cache        ResultCache
	cacheEnabled bool
	devMode      bool
	logger       *slog.Logger
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRegistry sets the provider registry and the name of the active provider.
func WithRegistry(registry *Registry, providerName string) Option {
	return func(s *service) {
		s.registry = registry
		s.providerName = providerName
	}
}

// WithURLRewriter sets the URL rewrite service.
func WithURLRewriter(rewriter URLRewriter) Option {
	return func(s *service) {
		s.rewriter = rewriter
	}
}

// WithResultCache enables result caching through the given cache.
func WithResultCache(cache ResultCache) Option {
	return func(s *service) {
		s.cache = cache
		s.cacheEnabled = cache != nil
	}
}

// WithDevMode disables caching entirely, regardless of cache configuration.
func WithDevMode(devMode bool) Option {
	return func(s *service) {
		s.devMode = devMode
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// NewService creates a new orchestration service.
func NewService(options ...Option) (Service, error) {
	s := &service{}
	for _, option := range options {
		option(s)
	}
	if s.registry == nil || s.providerName == "" {
		return nil, fmt.Errorf("a provider registry and provider name are required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Content read operations

func (s *service) SearchContent(ctx context.Context, req SearchContentRequest) (*SearchResult, error) {
	if req.Filter != nil && !ValidateFilter(req.Filter) {
		return nil, &ContentError{ContentType: req.Type, Op: "search", Err: ErrInvalidFilter}
	}
	if req.Locale != "" && !CheckLocale(req.Locale) {
		return nil, &ContentError{ContentType: req.Type, Op: "search", Err: ErrInvalidLocale}
	}

	cacheKey := s.cacheKey(ctx, "search", req)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		if result, ok := cached.(*SearchResult); ok {
			return result, nil
		}
	}

	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	if req.Locale == "" {
		req.Locale = DefaultLocale(ctx)
	}
	result, err := provider.SearchContent(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, hit := range result.Hits {
		hit.Data = s.rewriteData(ctx, hit.Data, false)
	}
	s.cacheSet(ctx, cacheKey, result)
	return result, nil
}

func (s *service) GetContent(ctx context.Context, req GetContentRequest) (*ContentWrapper, error) {
	if req.Locale != "" && !CheckLocale(req.Locale) {
		return nil, &ContentError{ContentType: req.Type, ContentID: req.ID, Op: "get", Err: ErrInvalidLocale}
	}

	cacheKey := s.cacheKey(ctx, "get", req)
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		if content, ok := cached.(*ContentWrapper); ok {
			return content, nil
		}
	}

	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	if req.Locale == "" {
		req.Locale = DefaultLocale(ctx)
	}
	content, err := provider.GetContent(ctx, req)
	if err != nil {
		return nil, err
	}
	content.Data = s.rewriteData(ctx, content.Data, false)
	s.cacheSet(ctx, cacheKey, content)
	return content, nil
}

func (s *service) GetContentVersions(ctx context.Context, contentType, id, locale string) (*VersionsResult, error) {
	if locale != "" && !CheckLocale(locale) {
		return nil, &ContentError{ContentType: contentType, ContentID: id, Op: "versions", Err: ErrInvalidLocale}
	}

	cacheKey := s.cacheKey(ctx, "versions", map[string]string{"type": contentType, "id": id, "locale": locale})
	if cached, ok := s.cacheGet(ctx, cacheKey); ok {
		if result, ok := cached.(*VersionsResult); ok {
			return result, nil
		}
	}

	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	if locale == "" {
		locale = DefaultLocale(ctx)
	}
	result, err := provider.GetContentVersions(ctx, contentType, id, locale)
	if err != nil {
		return nil, err
	}
	for _, version := range result.Versions {
		version.Data = s.rewriteData(ctx, version.Data, false)
	}
	s.cacheSet(ctx, cacheKey, result)
	return result, nil
}

// Content write operations

func (s *service) InsertContent(ctx context.Context, contentType string, input ContentInput) (*ContentWrapper, error) {
	if input.Locale != "" && !CheckLocale(input.Locale) {
		return nil, &ContentError{ContentType: contentType, Op: "insert", Err: ErrInvalidLocale}
	}

	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	// Callers author content against public URLs; map them back before storing.
	input.Data = s.rewriteData(ctx, input.Data, true)
	if input.Locale == "" {
		input.Locale = DefaultLocale(ctx)
	}
	content, err := provider.InsertContent(ctx, contentType, input)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	content.Data = s.rewriteData(ctx, content.Data, false)
	return content, nil
}

func (s *service) UpdateContent(ctx context.Context, contentType, id string, input ContentInput) (*ContentWrapper, error) {
	if input.Locale != "" && !CheckLocale(input.Locale) {
		return nil, &ContentError{ContentType: contentType, ContentID: id, Op: "update", Err: ErrInvalidLocale}
	}

	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	input.Data = s.rewriteData(ctx, input.Data, true)
	if input.Locale == "" {
		input.Locale = DefaultLocale(ctx)
	}
	content, err := provider.UpdateContent(ctx, contentType, id, input)
	if err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	content.Data = s.rewriteData(ctx, content.Data, false)
	return content, nil
}

func (s *service) RemoveContent(ctx context.Context, contentType, id string) error {
	provider, err := s.provider()
	if err != nil {
		return err
	}
	if err := provider.RemoveContent(ctx, contentType, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *service) RemoveContentParts(ctx context.Context, contentType, id string, locales []string, versions []int) error {
	if len(locales) == 0 && len(versions) == 0 {
		return nil
	}
	for _, locale := range locales {
		if !CheckLocale(locale) {
			return &ContentError{ContentType: contentType, ContentID: id, Op: "removeParts", Err: ErrInvalidLocale}
		}
	}
	provider, err := s.provider()
	if err != nil {
		return err
	}
	if err := provider.RemoveContentParts(ctx, contentType, id, locales, versions); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

// Asset operations. No caching is applied here; upload and search results
// carry public URLs.

func (s *service) UploadAsset(ctx context.Context, file io.Reader, req UploadAssetRequest) (*Asset, error) {
	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	asset, err := provider.UploadAsset(ctx, file, req)
	if err != nil {
		return nil, err
	}
	if s.rewriter != nil {
		asset.URL = s.rewriter.RewriteURL(ctx, asset.URL, false)
	}
	return asset, nil
}

func (s *service) SearchAssets(ctx context.Context, req SearchAssetsRequest) (*AssetSearchResult, error) {
	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	result, err := provider.SearchAssets(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.rewriter != nil {
		for _, hit := range result.Hits {
			hit.URL = s.rewriter.RewriteURL(ctx, hit.URL, false)
		}
	}
	return result, nil
}

func (s *service) RemoveAsset(ctx context.Context, id string) error {
	provider, err := s.provider()
	if err != nil {
		return err
	}
	return provider.RemoveAsset(ctx, id)
}

func (s *service) AssetProxies() (AssetProxyConfigs, error) {
	provider, err := s.provider()
	if err != nil {
		return nil, err
	}
	return provider.AssetProxies(), nil
}

// rewriteData walks a content payload and rewrites every string leaf whose
// key does not start with the reserved marker prefix. Containers are
// rebuilt; the input is never mutated.
func (s *service) rewriteData(ctx context.Context, data ContentData, reverse bool) ContentData {
	if data == nil || s.rewriter == nil {
		return data
	}
	return s.rewriteMap(ctx, data, reverse)
}

func (s *service) rewriteMap(ctx context.Context, in map[string]any, reverse bool) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		if strings.HasPrefix(key, "_") {
			out[key] = value
			continue
		}
		out[key] = s.rewriteValue(ctx, value, reverse)
	}
	return out
}

func (s *service) rewriteValue(ctx context.Context, value any, reverse bool) any {
	switch v := value.(type) {
	case string:
		return s.rewriter.RewriteContent(ctx, v, reverse)
	case map[string]any:
		return s.rewriteMap(ctx, v, reverse)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.rewriteValue(ctx, item, reverse)
		}
		return out
	default:
		// Numbers, booleans and nulls are never rewrite targets.
		return value
	}
}

// Cache plumbing. Caching is an optimization, never a correctness
// dependency: every failure here is logged and swallowed.

func (s *service) cacheKey(ctx context.Context, op string, args any) string {
	if s.devMode || !s.cacheEnabled {
		return ""
	}
	// The frontend base path determines how asset URLs are rewritten, so it
	// must be part of the key.
	argsJSON, err := json.Marshal(args)
	if err != nil {
		s.logger.Warn("failed to marshal cache key args", "op", op, "error", err)
		return ""
	}
	sum := sha256.Sum256([]byte(op + "__" + FrontendBasePath(ctx) + "__" + string(argsJSON)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func (s *service) cacheGet(ctx context.Context, key string) (any, bool) {
	if key == "" || s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

func (s *service) cacheSet(ctx context.Context, key string, value any) {
	if key == "" || s.cache == nil {
		return
	}
	s.cache.Set(ctx, key, value)
}

func (s *service) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	// Coarse whole-region invalidation: correctness over precision. A
	// failure here must not mask the successful write.
	if err := s.cache.Clear(ctx); err != nil {
		s.logger.Error("cache invalidation failed, stale reads possible", "error", err)
	}
}

func (s *service) provider() (Provider, error) {
	return s.registry.Provider(s.providerName)
}
