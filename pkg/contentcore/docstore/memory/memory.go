// Package memory provides an in-memory docstore.Store, primarily for tests
// and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/modularcms/content-core/pkg/contentcore/docstore"
)

// Store implements docstore.Store backed by process memory.
type Store struct {
	mu          sync.Mutex
	collections map[string]*collection
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name string) docstore.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		coll = &collection{}
		s.collections[name] = coll
	}
	return coll
}

type collection struct {
	mu   sync.RWMutex
	docs []docstore.Document
}

func (c *collection) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) (*docstore.FindResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []docstore.Document
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, copyDocument(doc))
		}
	}
	total := len(matches)

	sortDocuments(matches, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= len(matches) {
			matches = nil
		} else {
			matches = matches[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(matches) {
		matches = matches[:opts.Limit]
	}

	return &docstore.FindResult{Docs: matches, Total: total}, nil
}

func (c *collection) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			return copyDocument(doc), nil
		}
	}
	return nil, docstore.ErrNotFound
}

func (c *collection) InsertOne(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := copyDocument(doc)
	c.docs = append(c.docs, stored)
	return copyDocument(stored), nil
}

func (c *collection) UpdateMany(ctx context.Context, filter docstore.Filter, set docstore.Document) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated := 0
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			for key, value := range set {
				doc[key] = value
			}
			updated++
		}
	}
	return updated, nil
}

func (c *collection) DeleteMany(ctx context.Context, filter docstore.Filter) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kept []docstore.Document
	deleted := 0
	for _, doc := range c.docs {
		ok, err := matchDocument(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			deleted++
		} else {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return deleted, nil
}

// Filter evaluation

func matchDocument(doc docstore.Document, filter docstore.Filter) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}
	for key, condition := range filter {
		switch key {
		case "$and":
			items, ok := condition.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $and expects a list", docstore.ErrUnsupportedOperator)
			}
			for _, item := range items {
				sub, _ := item.(map[string]any)
				ok, err := matchDocument(doc, sub)
				if err != nil || !ok {
					return false, err
				}
			}
		case "$or":
			items, ok := condition.([]any)
			if !ok {
				return false, fmt.Errorf("%w: $or expects a list", docstore.ErrUnsupportedOperator)
			}
			matched := false
			for _, item := range items {
				sub, _ := item.(map[string]any)
				ok, err := matchDocument(doc, sub)
				if err != nil {
					return false, err
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				return false, nil
			}
		default:
			if strings.HasPrefix(key, "$") {
				return false, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOperator, key)
			}
			value, exists := lookupField(doc, key)
			ok, err := matchField(value, exists, condition)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func matchField(value any, exists bool, condition any) (bool, error) {
	ops, isOps := condition.(map[string]any)
	if !isOps || !hasOperatorKey(ops) {
		return exists && equalValues(value, condition), nil
	}
	for op, operand := range ops {
		if op == "$regex" {
			options, _ := ops["$options"].(string)
			ok, err := matchRegex(value, exists, operand, options)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		ok, err := applyOperator(value, exists, op, operand)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchRegex(value any, exists bool, operand any, options string) (bool, error) {
	if !exists {
		return false, nil
	}
	str, ok := value.(string)
	if !ok {
		return false, nil
	}
	re, err := compileRegex(operand, options)
	if err != nil {
		return false, err
	}
	return re.MatchString(str), nil
}

func hasOperatorKey(m map[string]any) bool {
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return true
		}
	}
	return false
}

func applyOperator(value any, exists bool, op string, operand any) (bool, error) {
	switch op {
	case "$eq":
		return exists && equalValues(value, operand), nil
	case "$ne":
		return !exists || !equalValues(value, operand), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !exists {
			return false, nil
		}
		cmp, ok := compareValues(value, operand)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case "$in", "$nin":
		items, ok := operand.([]any)
		if !ok {
			return false, fmt.Errorf("%w: %s expects a list", docstore.ErrUnsupportedOperator, op)
		}
		found := false
		for _, item := range items {
			if exists && equalValues(value, item) {
				found = true
				break
			}
		}
		if op == "$in" {
			return found, nil
		}
		return !found, nil
	case "$exists":
		want, _ := operand.(bool)
		return exists == want, nil
	case "$options":
		// Consumed together with $regex.
		return true, nil
	case "$not":
		sub, ok := operand.(map[string]any)
		if !ok {
			return false, fmt.Errorf("%w: $not expects an operator object", docstore.ErrUnsupportedOperator)
		}
		matched, err := matchField(value, exists, sub)
		if err != nil {
			return false, err
		}
		return !matched, nil
	default:
		return false, fmt.Errorf("%w: %s", docstore.ErrUnsupportedOperator, op)
	}
}

func compileRegex(operand any, options string) (*regexp.Regexp, error) {
	pattern, ok := operand.(string)
	if !ok {
		if m, isMap := operand.(map[string]any); isMap {
			pattern, _ = m["$regex"].(string)
			options, _ = m["$options"].(string)
		}
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: $regex expects a pattern", docstore.ErrUnsupportedOperator)
	}
	if strings.Contains(options, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid $regex %q", docstore.ErrUnsupportedOperator, pattern)
	}
	return re, nil
}

func equalValues(a, b any) bool {
	if an, aok := asNumber(a); aok {
		bn, bok := asNumber(b)
		return bok && an == bn
	}
	return a == b
}

func compareValues(a, b any) (int, bool) {
	if an, aok := asNumber(a); aok {
		bn, bok := asNumber(b)
		if !bok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// lookupField resolves a dotted field path inside a document.
func lookupField(doc docstore.Document, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = doc
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func sortDocuments(docs []docstore.Document, fields []docstore.Sort) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, field := range fields {
			vi, _ := lookupField(docs[i], field.Field)
			vj, _ := lookupField(docs[j], field.Field)
			cmp, ok := compareValues(vi, vj)
			if !ok || cmp == 0 {
				continue
			}
			if field.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func copyDocument(doc docstore.Document) docstore.Document {
	out := make(docstore.Document, len(doc))
	for key, value := range doc {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyDocument(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return value
	}
}
