package contentcore

import (
	"context"
	"time"
)

// Status is the domain type for content lifecycle states.
type Status string

// Content status constants. Within one (type, id, locale) group at most one
// entry is draft and at most one is published; all others are historic.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusHistoric  Status = "historic"
)

// ContentData is a JSON-shaped content payload. Keys starting with an
// underscore are reserved for provider-private fields.
type ContentData = map[string]any

// ContentMeta carries the non-payload attributes of one localized content
// version.
type ContentMeta struct {
	Locale           string    `json:"locale"`
	AvailableLocales []string  `json:"availableLocales,omitempty"`
	Version          int       `json:"version,omitempty"`
	Status           Status    `json:"status,omitempty"`
	CreatedAt        time.Time `json:"createdAt,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt,omitempty"`
}

// ContentWrapper is one localized content item as returned by a Provider.
type ContentWrapper struct {
	ID   string      `json:"id"`
	Data ContentData `json:"data"`
	Meta ContentMeta `json:"meta"`
}

// SearchResult is a page of content search hits.
type SearchResult struct {
	Hits  []*ContentWrapper `json:"hits"`
	Total int               `json:"total"`
}

// VersionsResult lists all versions of a content item in one locale.
type VersionsResult struct {
	Versions []*ContentWrapper `json:"versions"`
}

// AssetMeta describes an uploaded binary asset.
type AssetMeta struct {
	Title    string `json:"title"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Size     *int64 `json:"size,omitempty"`
}

// Asset is an uploaded binary asset. URL is the provider-relative download
// path; the orchestration layer rewrites it to its public form.
type Asset struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Meta      AssetMeta `json:"meta"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// AssetSearchResult is a page of asset search hits, ordered by upload time
// descending.
type AssetSearchResult struct {
	Hits  []*Asset `json:"hits"`
	Total int      `json:"total"`
}

// AssetContentRef points an uploaded asset at a field of an existing content
// item. The provider writes the resulting asset URL into that field via the
// normal update path, so the change is versioned.
type AssetContentRef struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	FieldName string `json:"fieldName"`
	Locale    string `json:"locale,omitempty"`
}

// AssetProxyConfig is one entry of the proxy table a Provider publishes so
// the URL rewrite and asset processing services can operate without knowing
// the backend's storage scheme. It is process-lifetime configuration, not a
// persisted entity.
type AssetProxyConfig struct {
	URLPrefix            string
	AllowImageProcessing bool
	// ToFullURI resolves a proxy-relative path to an absolute source
	// locator (file:// or http(s)://).
	ToFullURI func(ctx context.Context, path string) (string, error)
}

// AssetProxyConfigs maps logical asset-route names to their proxy configs.
// Consumers iterate proxies in sorted name order; rewriting stops at the
// first match.
type AssetProxyConfigs map[string]AssetProxyConfig

// SortField is one element of a search sort specification.
type SortField struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}
