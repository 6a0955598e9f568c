package contentcore

// Request DTOs

// SearchContentRequest contains parameters for a content search.
type SearchContentRequest struct {
	Type   string      `json:"type"`
	Filter Filter      `json:"filter,omitempty"`
	Locale string      `json:"locale,omitempty"`
	Status Status      `json:"status,omitempty"`
	Sort   []SortField `json:"sort,omitempty"`
	Limit  int         `json:"limit,omitempty"`
	Skip   int         `json:"skip,omitempty"`
}

// GetContentRequest contains parameters for fetching a single content item.
// Version 0 means the current published version.
type GetContentRequest struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Locale  string `json:"locale,omitempty"`
	Version int    `json:"version,omitempty"`
}

// ContentInput is the payload of an insert or update. Status defaults to
// published, Locale to the caller's default locale.
type ContentInput struct {
	Data   ContentData `json:"data"`
	Locale string      `json:"locale,omitempty"`
	Status Status      `json:"status,omitempty"`
}

// UploadAssetRequest contains parameters for an asset upload. Path is an
// optional subfolder below the provider's asset root. ContentRef optionally
// links the uploaded asset URL into a field of existing content.
type UploadAssetRequest struct {
	Meta       AssetMeta        `json:"meta"`
	Path       string           `json:"path,omitempty"`
	ContentRef *AssetContentRef `json:"contentRef,omitempty"`
}

// SearchAssetsRequest contains parameters for an asset search. MimeType
// matches the asset mime type (substring, case-insensitive), TitleContains
// the asset title.
type SearchAssetsRequest struct {
	MimeType      string `json:"mimeType,omitempty"`
	TitleContains string `json:"titleContains,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Skip          int    `json:"skip,omitempty"`
}
