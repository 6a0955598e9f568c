// Package resultcache caches rewritten content query results in memory.
// Entries expire after a configurable TTL; mutations clear the whole cache
// through contentcore's invalidation hook.
package resultcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultMaxEntries bounds the cache when no size is configured.
	DefaultMaxEntries = 1000
	// DefaultTTL applies when no TTL is configured.
	DefaultTTL = 30 * time.Second
)

// Cache is an expiring LRU over query results, safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, any]
}

// New creates a cache with the given capacity and entry TTL. Zero values
// fall back to the package defaults.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[string, any](maxEntries, nil, ttl)}
}

func (c *Cache) Get(ctx context.Context, key string) (any, bool) {
	return c.lru.Get(key)
}

func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.lru.Add(key, value)
}

// Clear drops every entry. Mutating operations call this as their coarse
// invalidation step.
func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
