package contentcore

import (
	"context"
	"io"
)

// Service is the content orchestration façade. It validates filters and
// locales, applies locale defaults, consults the result cache, delegates to
// the active Provider, rewrites embedded asset URLs in both directions and
// invalidates the cache on mutation.
type Service interface {
	// Content read operations
	SearchContent(ctx context.Context, req SearchContentRequest) (*SearchResult, error)
	GetContent(ctx context.Context, req GetContentRequest) (*ContentWrapper, error)
	GetContentVersions(ctx context.Context, contentType, id, locale string) (*VersionsResult, error)

	// Content write operations
	InsertContent(ctx context.Context, contentType string, input ContentInput) (*ContentWrapper, error)
	UpdateContent(ctx context.Context, contentType, id string, input ContentInput) (*ContentWrapper, error)
	RemoveContent(ctx context.Context, contentType, id string) error
	RemoveContentParts(ctx context.Context, contentType, id string, locales []string, versions []int) error

	// Asset operations
	UploadAsset(ctx context.Context, file io.Reader, req UploadAssetRequest) (*Asset, error)
	SearchAssets(ctx context.Context, req SearchAssetsRequest) (*AssetSearchResult, error)
	RemoveAsset(ctx context.Context, id string) error

	// AssetProxies exposes the active provider's proxy table.
	AssetProxies() (AssetProxyConfigs, error)
}

// URLRewriter translates asset URLs between their internal and public
// representations. Implemented by the urlrewrite subpackage.
type URLRewriter interface {
	// RewriteURL rewrites a single URL. With reverse=false the internal
	// representation becomes the public one; with reverse=true the public
	// form is mapped back.
	RewriteURL(ctx context.Context, url string, reverse bool) string

	// RewriteContent scans free text for embedded URLs and rewrites each.
	RewriteContent(ctx context.Context, text string, reverse bool) string
}

// ResultCache is the read-result cache consulted by the Service. Reads and
// writes are best-effort; a failing cache must never fail a request.
// Implemented by the resultcache subpackage.
type ResultCache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any)
	Clear(ctx context.Context) error
}
