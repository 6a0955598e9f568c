package internalstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/blob"
	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

func (p *Provider) UploadAsset(ctx context.Context, file io.Reader, req contentcore.UploadAssetRequest) (*contentcore.Asset, error) {
	subfolder := strings.Trim(req.Path, "/")

	targetFileName := uuid.NewString() + "_" + req.Meta.FileName
	objectKey := targetFileName
	assetURL := downloadsURLPrefix + "/" + url.PathEscape(targetFileName)
	if subfolder != "" {
		objectKey = subfolder + "/" + targetFileName
		assetURL = downloadsURLPrefix + "/" + subfolder + "/" + url.PathEscape(targetFileName)
	}

	if err := p.blobs.Upload(ctx, file, blob.UploadParams{
		ObjectKey: objectKey,
		MimeType:  req.Meta.MimeType,
	}); err != nil {
		return nil, p.assetErr("", "upload", err)
	}

	id := uuid.NewString()
	now := time.Now()
	asset := &contentcore.Asset{
		ID:        id,
		URL:       assetURL,
		Meta:      req.Meta,
		CreatedAt: now,
	}

	if _, err := p.assetsCollection().InsertOne(ctx, docstore.Document{
		keyAssetID:      id,
		keyAssetCreated: now.UnixMilli(),
		keyAssetURL:     assetURL,
		keyAssetMeta:    assetMetaDocument(req.Meta),
	}); err != nil {
		return nil, p.assetErr(id, "upload", err)
	}
	p.logger.Debug("uploaded asset", "id", id, "url", assetURL)

	if req.ContentRef != nil {
		if err := p.applyContentRef(ctx, *req.ContentRef, assetURL); err != nil {
			p.logger.Error("invalid content ref", "type", req.ContentRef.Type,
				"id", req.ContentRef.ID, "locale", req.ContentRef.Locale, "error", err)
		}
	}

	return asset, nil
}

// applyContentRef writes the asset URL into a field of the referenced
// content via the normal update path, so the change is versioned.
func (p *Provider) applyContentRef(ctx context.Context, ref contentcore.AssetContentRef, assetURL string) error {
	locale := ref.Locale
	if locale == "" {
		locale = contentcore.DefaultLocale(ctx)
	}
	entry, err := p.GetContent(ctx, contentcore.GetContentRequest{
		Type:   ref.Type,
		ID:     ref.ID,
		Locale: locale,
	})
	if err != nil {
		return err
	}

	data := make(contentcore.ContentData, len(entry.Data)+1)
	for key, value := range entry.Data {
		data[key] = value
	}
	data[ref.FieldName] = assetURL

	_, err = p.UpdateContent(ctx, ref.Type, ref.ID, contentcore.ContentInput{
		Data:   data,
		Locale: locale,
	})
	return err
}

func (p *Provider) SearchAssets(ctx context.Context, req contentcore.SearchAssetsRequest) (*contentcore.AssetSearchResult, error) {
	var conditions []any
	if req.MimeType != "" {
		conditions = append(conditions, docstore.Filter{
			"meta.mimeType": map[string]any{"$regex": req.MimeType, "$options": "i"},
		})
	}
	if req.TitleContains != "" {
		conditions = append(conditions, docstore.Filter{
			"meta.title": map[string]any{"$regex": req.TitleContains, "$options": "i"},
		})
	}
	filter := docstore.Filter{}
	if len(conditions) > 0 {
		filter["$and"] = conditions
	}

	result, err := p.assetsCollection().Find(ctx, filter, docstore.FindOptions{
		Limit: req.Limit,
		Skip:  req.Skip,
		Sort:  []docstore.Sort{{Field: keyAssetCreated, Desc: true}},
	})
	if err != nil {
		return nil, p.assetErr("", "search", err)
	}

	hits := make([]*contentcore.Asset, 0, len(result.Docs))
	for _, doc := range result.Docs {
		hits = append(hits, mapAssetEntry(doc))
	}
	return &contentcore.AssetSearchResult{Hits: hits, Total: result.Total}, nil
}

func (p *Provider) RemoveAsset(ctx context.Context, id string) error {
	entry, err := p.assetsCollection().FindOne(ctx, docstore.Filter{keyAssetID: id})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &contentcore.AssetError{AssetID: id, Op: "remove", Err: contentcore.ErrNotFound}
		}
		return p.assetErr(id, "remove", err)
	}

	objectKey := objectKeyFromURL(asString(entry[keyAssetURL]))
	if objectKey != "" {
		if err := p.blobs.Delete(ctx, objectKey); err != nil && !errors.Is(err, blob.ErrNotFound) {
			p.logger.Error("unable to remove asset payload", "id", id, "key", objectKey, "error", err)
		}
	}

	if _, err := p.assetsCollection().DeleteMany(ctx, docstore.Filter{keyAssetID: id}); err != nil {
		return p.assetErr(id, "remove", err)
	}
	p.logger.Debug("removed asset", "id", id)
	return nil
}

// AssetProxies publishes the single download route backed by the blob store.
func (p *Provider) AssetProxies() contentcore.AssetProxyConfigs {
	return contentcore.AssetProxyConfigs{
		"p1": {
			URLPrefix:            downloadsURLPrefix,
			AllowImageProcessing: true,
			ToFullURI: func(ctx context.Context, path string) (string, error) {
				objectKey := objectKeyFromURL(strings.SplitN(path, "?", 2)[0])
				if objectKey == "" {
					return "", blob.ErrNotFound
				}
				return p.blobs.SourceURI(ctx, objectKey)
			},
		},
	}
}

// objectKeyFromURL maps a provider-relative download URL back to the blob
// object key it was stored under.
func objectKeyFromURL(assetURL string) string {
	if !strings.HasPrefix(assetURL, downloadsURLPrefix+"/") {
		return ""
	}
	escaped := strings.TrimPrefix(assetURL, downloadsURLPrefix+"/")
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return escaped
	}
	return key
}

func assetMetaDocument(meta contentcore.AssetMeta) map[string]any {
	doc := map[string]any{
		"title":    meta.Title,
		"fileName": meta.FileName,
		"mimeType": meta.MimeType,
	}
	if meta.Width != nil {
		doc["width"] = *meta.Width
	}
	if meta.Height != nil {
		doc["height"] = *meta.Height
	}
	if meta.Size != nil {
		doc["size"] = *meta.Size
	}
	return doc
}

func mapAssetEntry(doc docstore.Document) *contentcore.Asset {
	asset := &contentcore.Asset{
		ID:        asString(doc[keyAssetID]),
		URL:       asString(doc[keyAssetURL]),
		CreatedAt: time.UnixMilli(asInt64(doc[keyAssetCreated])),
	}
	if meta, ok := doc[keyAssetMeta].(map[string]any); ok {
		asset.Meta.Title = asString(meta["title"])
		asset.Meta.FileName = asString(meta["fileName"])
		asset.Meta.MimeType = asString(meta["mimeType"])
		if _, ok := meta["width"]; ok {
			width := asInt(meta["width"])
			asset.Meta.Width = &width
		}
		if _, ok := meta["height"]; ok {
			height := asInt(meta["height"])
			asset.Meta.Height = &height
		}
		if _, ok := meta["size"]; ok {
			size := asInt64(meta["size"])
			asset.Meta.Size = &size
		}
	}
	return asset
}

func (p *Provider) assetErr(id, op string, err error) error {
	return &contentcore.AssetError{
		AssetID: id,
		Op:      op,
		Err:     fmt.Errorf("%w: %v", contentcore.ErrProviderInternal, err),
	}
}
