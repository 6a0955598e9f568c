package contentcore

import (
	"context"
	"io"
)

// Provider is the pluggable backend capability contract. Implementations
// own all persistent content, version and asset records. Every method that
// can fail for business reasons returns one of the error kinds declared in
// errors.go.
//
// All methods take the caller/request context for scoping; use WithCaller
// to attach it.
type Provider interface {
	SearchContent(ctx context.Context, req SearchContentRequest) (*SearchResult, error)

	// GetContent fails with ErrNotFound if the item is absent in the
	// requested locale and no default-locale fallback applies.
	GetContent(ctx context.Context, req GetContentRequest) (*ContentWrapper, error)

	GetContentVersions(ctx context.Context, contentType, id, locale string) (*VersionsResult, error)

	InsertContent(ctx context.Context, contentType string, input ContentInput) (*ContentWrapper, error)

	// UpdateContent creates a new version and may add a new locale.
	UpdateContent(ctx context.Context, contentType, id string, input ContentInput) (*ContentWrapper, error)

	RemoveContent(ctx context.Context, contentType, id string) error

	// RemoveContentParts removes the given locales and/or version numbers.
	// With only locales given the language-set bookkeeping is recomputed;
	// with versions given it is left untouched.
	RemoveContentParts(ctx context.Context, contentType, id string, locales []string, versions []int) error

	UploadAsset(ctx context.Context, file io.Reader, req UploadAssetRequest) (*Asset, error)

	// SearchAssets returns assets ordered by upload time descending.
	SearchAssets(ctx context.Context, req SearchAssetsRequest) (*AssetSearchResult, error)

	RemoveAsset(ctx context.Context, id string) error

	// AssetProxies returns the provider's proxy table. It is read-only,
	// process-lifetime configuration.
	AssetProxies() AssetProxyConfigs
}
