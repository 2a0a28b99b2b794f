package auth

import (
	"context"
	"sync"
	"time"
)

// Cache holds a value fetched from a slow collaborator for a fixed TTL.
// Concurrent misses may fetch more than once; the last result wins.
type Cache[T any] struct {
	fetch func(ctx context.Context) (T, error)
	ttl   time.Duration
	now   func() time.Time

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	loaded    bool
}

// NewCache creates a cache around fetch. A nil clock uses time.Now.
func NewCache[T any](fetch func(ctx context.Context) (T, error), ttl time.Duration, now func() time.Time) *Cache[T] {
	if now == nil {
		now = time.Now
	}
	return &Cache[T]{fetch: fetch, ttl: ttl, now: now}
}

// Get returns the cached value, refreshing it when stale. When a refresh
// fails and an older value exists, the older value is served with the error
// reported through stale.
func (c *Cache[T]) Get(ctx context.Context) (value T, stale error, err error) {
	c.mu.RLock()
	if c.loaded && c.now().Sub(c.fetchedAt) < c.ttl {
		v := c.value
		c.mu.RUnlock()
		return v, nil, nil
	}
	c.mu.RUnlock()

	fresh, ferr := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ferr != nil {
		if c.loaded {
			return c.value, ferr, nil
		}
		var zero T
		return zero, nil, ferr
	}
	c.value = fresh
	c.fetchedAt = c.now()
	c.loaded = true
	return fresh, nil, nil
}

// Invalidate forces the next Get to refresh
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
