// Package internalstorage implements the contentcore.Provider contract on
// top of a generic document collection store and a blob store. It is the
// reference provider: localized content entries are versioned per locale,
// a language-independent master entry tracks which locales exist, and
// asset payloads go to the blob store while their index lives in a
// collection.
package internalstorage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/blob"
	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

const (
	masterCollectionName  = "content_master"
	entryCollectionPrefix = "content_entries_"
	assetCollectionName   = "content_assets"

	downloadsURLPrefix = "/downloads"
)

// Document keys reserved for bookkeeping. They live alongside the content
// payload inside the same document and are stripped before a payload is
// returned to the caller.
const (
	keyContentID       = "_contentId"
	keyContentType     = "_contentType"
	keyContentCreated  = "_contentCreated"
	keyContentUpdated  = "_contentUpdated"
	keyContentVersion  = "_contentVersion"
	keyContentStatus   = "_contentStatus"
	keyContentLangs    = "_contentLanguages"
	keyAvailableLangs  = "_contentAvailableLanguages"
	reservedKeyPrefix  = "_content"
	keyAssetID         = "_assetId"
	keyAssetCreated    = "_assetCreated"
	keyAssetURL        = "url"
	keyAssetMeta       = "meta"
	internalDocumentID = "_id"
)

// Provider stores content in a docstore.Store and asset bytes in a
// blob.Store.
type Provider struct {
	store  docstore.Store
	blobs  blob.Store
	logger *slog.Logger
}

// New creates an internal storage provider.
func New(store docstore.Store, blobs blob.Store, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		blobs:  blobs,
		logger: logger.With("provider", "internal-storage"),
	}
}

func (p *Provider) masterCollection() docstore.Collection {
	return p.store.Collection(masterCollectionName)
}

func (p *Provider) entriesCollection(locale string) docstore.Collection {
	return p.store.Collection(entryCollectionPrefix + locale)
}

func (p *Provider) assetsCollection() docstore.Collection {
	return p.store.Collection(assetCollectionName)
}

func (p *Provider) masterEntry(ctx context.Context, contentType, id string) (docstore.Document, error) {
	return p.masterCollection().FindOne(ctx, docstore.Filter{
		keyContentType: contentType,
		keyContentID:   id,
	})
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// mapEntry converts a stored content document into the wrapper shape the
// Provider contract returns.
func mapEntry(doc docstore.Document, locale string) *contentcore.ContentWrapper {
	data := make(contentcore.ContentData)
	for key, value := range doc {
		if strings.HasPrefix(key, reservedKeyPrefix) || key == internalDocumentID {
			continue
		}
		data[key] = value
	}

	meta := contentcore.ContentMeta{
		Locale:           locale,
		AvailableLocales: asStrings(doc[keyAvailableLangs]),
		Version:          asInt(doc[keyContentVersion]),
		CreatedAt:        time.UnixMilli(asInt64(doc[keyContentCreated])),
		UpdatedAt:        time.UnixMilli(asInt64(doc[keyContentUpdated])),
	}
	switch contentcore.Status(asString(doc[keyContentStatus])) {
	case contentcore.StatusPublished:
		meta.Status = contentcore.StatusPublished
	case contentcore.StatusDraft:
		meta.Status = contentcore.StatusDraft
	case contentcore.StatusHistoric:
		meta.Status = contentcore.StatusHistoric
	}

	return &contentcore.ContentWrapper{
		ID:   asString(doc[keyContentID]),
		Data: data,
		Meta: meta,
	}
}

// asInt normalizes numbers that went through a JSON round trip.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asStrings handles both native string slices and JSON-decoded []any.
func asStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}
