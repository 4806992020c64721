// Package cache provides a typed in-memory TTL cache.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache is a typed TTL cache with background expiry.
type Cache[K comparable, V any] struct {
	c *ttlcache.Cache[K, V]
}

// New creates a cache. defaultTTL applies when Set is called with a zero TTL.
func New[K comparable, V any](defaultTTL time.Duration) *Cache[K, V] {
	c := ttlcache.New[K, V](
		ttlcache.WithTTL[K, V](defaultTTL),
		ttlcache.WithDisableTouchOnHit[K, V](),
	)
	go c.Start()

	return &Cache[K, V]{c: c}
}

// Get returns the cached value for key, if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	item := c.c.Get(key)
	if item == nil || item.IsExpired() {
		var zero V
		return zero, false
	}
	return item.Value(), true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.c.Set(key, value, ttl)
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.c.Delete(key)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.c.Len()
}

// Close stops the expiry goroutine.
func (c *Cache[K, V]) Close() {
	c.c.Stop()
}
