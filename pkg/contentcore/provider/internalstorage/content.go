package internalstorage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/modularcms/content-core/pkg/contentcore"
	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

func (p *Provider) SearchContent(ctx context.Context, req contentcore.SearchContentRequest) (*contentcore.SearchResult, error) {
	locale := req.Locale
	if locale == "" {
		locale = contentcore.DefaultLocale(ctx)
	}
	status := req.Status
	if status == "" {
		status = contentcore.StatusPublished
	}

	conditions := []any{
		docstore.Filter{keyContentType: req.Type},
		docstore.Filter{keyContentStatus: string(status)},
	}
	if len(req.Filter) > 0 {
		conditions = append(conditions, toStoreFilter(req.Filter))
	}

	result, err := p.entriesCollection(locale).Find(ctx, docstore.Filter{"$and": conditions}, docstore.FindOptions{
		Limit: req.Limit,
		Skip:  req.Skip,
		Sort:  toStoreSort(req.Sort),
	})
	if err != nil {
		return nil, p.contentErr(req.Type, "", "search", err)
	}

	hits := make([]*contentcore.ContentWrapper, 0, len(result.Docs))
	for _, doc := range result.Docs {
		hits = append(hits, mapEntry(doc, locale))
	}
	return &contentcore.SearchResult{Hits: hits, Total: result.Total}, nil
}

func (p *Provider) GetContent(ctx context.Context, req contentcore.GetContentRequest) (*contentcore.ContentWrapper, error) {
	defaultLocale := contentcore.DefaultLocale(ctx)
	locale := req.Locale
	if locale == "" {
		locale = defaultLocale
	}

	conditions := []any{
		docstore.Filter{keyContentType: req.Type},
		docstore.Filter{keyContentID: req.ID},
	}
	if req.Version > 0 {
		conditions = append(conditions, docstore.Filter{keyContentVersion: req.Version})
	} else {
		conditions = append(conditions, docstore.Filter{keyContentStatus: string(contentcore.StatusPublished)})
	}
	filter := docstore.Filter{"$and": conditions}

	entry, err := p.entriesCollection(locale).FindOne(ctx, filter)
	if err == nil {
		return mapEntry(entry, locale), nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, p.contentErr(req.Type, req.ID, "get", err)
	}

	// Missing translation: fall back to the caller's default locale if the
	// item exists at all.
	master, masterErr := p.masterEntry(ctx, req.Type, req.ID)
	if masterErr != nil && !errors.Is(masterErr, docstore.ErrNotFound) {
		return nil, p.contentErr(req.Type, req.ID, "get", masterErr)
	}
	if master != nil && locale != defaultLocale {
		fallbackEntry, fallbackErr := p.entriesCollection(defaultLocale).FindOne(ctx, filter)
		if fallbackErr == nil {
			return mapEntry(fallbackEntry, defaultLocale), nil
		}
		if !errors.Is(fallbackErr, docstore.ErrNotFound) {
			return nil, p.contentErr(req.Type, req.ID, "get", fallbackErr)
		}
	}

	p.logger.Error("content not found", "type", req.Type, "id", req.ID, "locale", locale)
	return nil, &contentcore.ContentError{ContentType: req.Type, ContentID: req.ID, Op: "get", Err: contentcore.ErrNotFound}
}

func (p *Provider) GetContentVersions(ctx context.Context, contentType, id, locale string) (*contentcore.VersionsResult, error) {
	if locale == "" {
		locale = contentcore.DefaultLocale(ctx)
	}

	filter := docstore.Filter{
		keyContentType: contentType,
		keyContentID:   id,
	}
	result, err := p.entriesCollection(locale).Find(ctx, filter, docstore.FindOptions{})
	if err != nil {
		return nil, p.contentErr(contentType, id, "versions", err)
	}
	if len(result.Docs) > 0 {
		versions := make([]*contentcore.ContentWrapper, 0, len(result.Docs))
		for _, doc := range result.Docs {
			versions = append(versions, mapEntry(doc, locale))
		}
		return &contentcore.VersionsResult{Versions: versions}, nil
	}

	// No entries in this locale but the item exists in others.
	_, masterErr := p.masterEntry(ctx, contentType, id)
	if masterErr == nil {
		return &contentcore.VersionsResult{Versions: []*contentcore.ContentWrapper{}}, nil
	}
	if !errors.Is(masterErr, docstore.ErrNotFound) {
		return nil, p.contentErr(contentType, id, "versions", masterErr)
	}

	p.logger.Error("content not found", "type", contentType, "id", id, "locale", locale)
	return nil, &contentcore.ContentError{ContentType: contentType, ContentID: id, Op: "versions", Err: contentcore.ErrNotFound}
}

func (p *Provider) InsertContent(ctx context.Context, contentType string, input contentcore.ContentInput) (*contentcore.ContentWrapper, error) {
	locale := input.Locale
	if locale == "" {
		locale = contentcore.DefaultLocale(ctx)
	}
	status := input.Status
	if status == "" {
		status = contentcore.StatusPublished
	}

	contentID := uuid.NewString()
	now := nowMillis()

	_, err := p.masterCollection().InsertOne(ctx, docstore.Document{
		keyContentID:      contentID,
		keyContentType:    contentType,
		keyContentCreated: now,
		keyContentUpdated: now,
		keyContentLangs:   []string{locale},
	})
	if err != nil {
		return nil, p.contentErr(contentType, contentID, "insert", err)
	}
	p.logger.Debug("inserted master content entry", "type", contentType, "id", contentID)

	entry := newEntryDocument(contentType, contentID, input.Data, 1, status, []string{locale}, now)
	inserted, err := p.entriesCollection(locale).InsertOne(ctx, entry)
	if err != nil {
		return nil, p.contentErr(contentType, contentID, "insert", err)
	}
	p.logger.Debug("inserted content entry", "type", contentType, "id", contentID, "locale", locale)

	return mapEntry(inserted, locale), nil
}

func (p *Provider) UpdateContent(ctx context.Context, contentType, id string, input contentcore.ContentInput) (*contentcore.ContentWrapper, error) {
	master, err := p.masterEntry(ctx, contentType, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			p.logger.Error("content not found", "type", contentType, "id", id)
			return nil, &contentcore.ContentError{ContentType: contentType, ContentID: id, Op: "update", Err: contentcore.ErrNotFound}
		}
		return nil, p.contentErr(contentType, id, "update", err)
	}

	locale := input.Locale
	if locale == "" {
		locale = contentcore.DefaultLocale(ctx)
	}
	status := input.Status
	if status == "" {
		status = contentcore.StatusPublished
	}
	now := nowMillis()

	existingLocales := asStrings(master[keyContentLangs])
	availableLocales := append([]string(nil), existingLocales...)
	newLocale := !slices.Contains(existingLocales, locale)

	if newLocale {
		// First version in a new language: extend the master's language
		// set and refresh the denormalized copy on every existing entry.
		// Nothing is historized, the new locale has no prior versions.
		availableLocales = append(availableLocales, locale)
		_, err = p.masterCollection().UpdateMany(ctx, docstore.Filter{
			keyContentType: contentType,
			keyContentID:   id,
		}, docstore.Document{
			keyContentUpdated: now,
			keyContentLangs:   availableLocales,
		})
		if err != nil {
			return nil, p.contentErr(contentType, id, "update", err)
		}
		for _, existing := range existingLocales {
			_, err = p.entriesCollection(existing).UpdateMany(ctx, docstore.Filter{
				keyContentType: contentType,
				keyContentID:   id,
			}, docstore.Document{
				keyContentUpdated: now,
				keyAvailableLangs: availableLocales,
			})
			if err != nil {
				return nil, p.contentErr(contentType, id, "update", err)
			}
		}
	}

	nextVersion := 1
	if !newLocale {
		versions, err := p.GetContentVersions(ctx, contentType, id, locale)
		if err != nil {
			return nil, err
		}
		highest := 0
		for _, v := range versions.Versions {
			if v.Meta.Version > highest {
				highest = v.Meta.Version
			}
		}
		nextVersion = highest + 1
	}

	historizeFilter := docstore.Filter{
		keyContentType: contentType,
		keyContentID:   id,
	}
	if status == contentcore.StatusDraft {
		// A draft write leaves the published version visible.
		historizeFilter[keyContentStatus] = string(contentcore.StatusDraft)
	}
	_, err = p.entriesCollection(locale).UpdateMany(ctx, historizeFilter, docstore.Document{
		keyContentUpdated: now,
		keyContentStatus:  string(contentcore.StatusHistoric),
	})
	if err != nil {
		return nil, p.contentErr(contentType, id, "update", err)
	}

	entry := newEntryDocument(contentType, id, input.Data, nextVersion, status, availableLocales, now)
	inserted, err := p.entriesCollection(locale).InsertOne(ctx, entry)
	if err != nil {
		return nil, p.contentErr(contentType, id, "update", err)
	}
	p.logger.Debug("updated content entry", "type", contentType, "id", id, "locale", locale, "version", nextVersion)

	return mapEntry(inserted, locale), nil
}

func (p *Provider) RemoveContent(ctx context.Context, contentType, id string) error {
	master, err := p.masterEntry(ctx, contentType, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			p.logger.Error("content not found", "type", contentType, "id", id)
			return &contentcore.ContentError{ContentType: contentType, ContentID: id, Op: "remove", Err: contentcore.ErrNotFound}
		}
		return p.contentErr(contentType, id, "remove", err)
	}

	if _, err := p.masterCollection().DeleteMany(ctx, docstore.Filter{
		keyContentType: contentType,
		keyContentID:   id,
	}); err != nil {
		return p.contentErr(contentType, id, "remove", err)
	}

	for _, locale := range asStrings(master[keyContentLangs]) {
		if _, err := p.entriesCollection(locale).DeleteMany(ctx, docstore.Filter{
			keyContentType: contentType,
			keyContentID:   id,
		}); err != nil {
			return p.contentErr(contentType, id, "remove", err)
		}
		p.logger.Debug("deleted content locale", "type", contentType, "id", id, "locale", locale)
	}
	return nil
}

func (p *Provider) RemoveContentParts(ctx context.Context, contentType, id string, locales []string, versions []int) error {
	if len(locales) == 0 && len(versions) == 0 {
		return nil
	}

	master, err := p.masterEntry(ctx, contentType, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			p.logger.Error("content not found", "type", contentType, "id", id)
			return &contentcore.ContentError{ContentType: contentType, ContentID: id, Op: "removeParts", Err: contentcore.ErrNotFound}
		}
		return p.contentErr(contentType, id, "removeParts", err)
	}
	now := nowMillis()

	if len(versions) == 0 {
		// Whole locales go away; the language-set bookkeeping has to be
		// recomputed on the master and every remaining locale.
		for _, locale := range locales {
			if _, err := p.entriesCollection(locale).DeleteMany(ctx, docstore.Filter{
				keyContentType: contentType,
				keyContentID:   id,
			}); err != nil {
				return p.contentErr(contentType, id, "removeParts", err)
			}
			p.logger.Debug("deleted content locale", "type", contentType, "id", id, "locale", locale)
		}

		var remaining []string
		for _, locale := range asStrings(master[keyContentLangs]) {
			if !slices.Contains(locales, locale) {
				remaining = append(remaining, locale)
			}
		}
		if _, err := p.masterCollection().UpdateMany(ctx, docstore.Filter{
			keyContentType: contentType,
			keyContentID:   id,
		}, docstore.Document{
			keyContentUpdated: now,
			keyContentLangs:   remaining,
		}); err != nil {
			return p.contentErr(contentType, id, "removeParts", err)
		}
		for _, locale := range remaining {
			if _, err := p.entriesCollection(locale).UpdateMany(ctx, docstore.Filter{
				keyContentType: contentType,
				keyContentID:   id,
			}, docstore.Document{
				keyContentUpdated: now,
				keyAvailableLangs: remaining,
			}); err != nil {
				return p.contentErr(contentType, id, "removeParts", err)
			}
		}
		return nil
	}

	// Version removal never touches the language sets.
	targetLocales := locales
	if len(targetLocales) == 0 {
		targetLocales = asStrings(master[keyContentLangs])
	}
	versionList := make([]any, len(versions))
	for i, v := range versions {
		versionList[i] = v
	}
	for _, locale := range targetLocales {
		if _, err := p.entriesCollection(locale).DeleteMany(ctx, docstore.Filter{
			keyContentType:    contentType,
			keyContentID:      id,
			keyContentVersion: map[string]any{"$in": versionList},
		}); err != nil {
			return p.contentErr(contentType, id, "removeParts", err)
		}
		p.logger.Debug("deleted content versions", "type", contentType, "id", id, "locale", locale, "versions", versions)
	}
	return nil
}

// newEntryDocument lays out one localized content version. Payload keys and
// bookkeeping keys share the document; bookkeeping keys win on collision.
func newEntryDocument(contentType, id string, data contentcore.ContentData, version int, status contentcore.Status, availableLocales []string, now int64) docstore.Document {
	doc := make(docstore.Document, len(data)+7)
	for key, value := range data {
		doc[key] = value
	}
	doc[keyContentID] = id
	doc[keyContentType] = contentType
	doc[keyContentCreated] = now
	doc[keyContentUpdated] = now
	doc[keyContentVersion] = version
	doc[keyContentStatus] = string(status)
	doc[keyAvailableLangs] = append([]string(nil), availableLocales...)
	return doc
}

func (p *Provider) contentErr(contentType, id, op string, err error) error {
	return &contentcore.ContentError{
		ContentType: contentType,
		ContentID:   id,
		Op:          op,
		Err:         fmt.Errorf("%w: %v", contentcore.ErrProviderInternal, err),
	}
}
