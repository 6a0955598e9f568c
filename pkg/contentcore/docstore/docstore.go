// Package docstore defines a minimal document-collection abstraction used
// by the reference content provider. A Store hands out named collections of
// JSON-shaped documents supporting a small mongo-style filter dialect.
//
// Backends only need to provide atomic single-document writes; no
// cross-document transactions are required by the layers above.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no document matched the filter.
	ErrNotFound = errors.New("document not found")

	// ErrUnsupportedOperator indicates a filter operator the backend cannot
	// translate. Backends fail fast instead of silently matching everything.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
)

// Document is one JSON-shaped record.
type Document = map[string]any

// Filter is a mongo-style condition tree. Supported operators:
// $and, $or, $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin, $exists,
// $regex (with $options "i") and $not. Field keys may use dotted paths.
type Filter = map[string]any

// Sort is one element of a sort specification.
type Sort struct {
	Field string
	Desc  bool
}

// FindOptions narrows a Find.
type FindOptions struct {
	Limit int
	Skip  int
	Sort  []Sort
}

// FindResult is a page of documents plus the total match count before
// limit/skip were applied.
type FindResult struct {
	Docs  []Document
	Total int
}

// Collection is a named set of documents.
type Collection interface {
	Find(ctx context.Context, filter Filter, opts FindOptions) (*FindResult, error)
	FindOne(ctx context.Context, filter Filter) (Document, error)
	InsertOne(ctx context.Context, doc Document) (Document, error)
	// UpdateMany merges set into every matching document and returns the
	// number of documents updated.
	UpdateMany(ctx context.Context, filter Filter, set Document) (int, error)
	DeleteMany(ctx context.Context, filter Filter) (int, error)
}

// Store hands out collections by name. Collections spring into existence on
// first use.
type Store interface {
	Collection(name string) Collection
}
