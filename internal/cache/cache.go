// Package cache implements an in-memory map whose entries expire after a
// per-entry time-to-live.
//
// Expiry is lazy: a stale entry is dropped the moment a lookup observes it,
// and Sweep drops every stale entry at once. There is no background goroutine.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

type options struct {
	now func() time.Time
}

// Option configures a Cache.
type Option func(*options)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache whose Set uses defaultTTL.
func New[K comparable, V any](defaultTTL time.Duration, opts ...Option) *Cache[K, V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[K, V]{
		items:      make(map[K]entry[V]),
		defaultTTL: defaultTTL,
		now:        o.now,
	}
}

// DefaultTTL returns the lifetime given to entries stored with Set.
func (c *Cache[K, V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Set stores value under key for the default TTL, replacing any previous entry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key for ttl. The previous expiry of key, if
// any, is discarded rather than extended.
func (c *Cache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key holds an unexpired entry.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(key)
	return ok
}

// Delete removes key and reports whether it was stored.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sweep()
}

// Len returns the number of unexpired entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	return len(c.items)
}

// Keys returns a snapshot of the unexpired keys in no particular order.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweep()
	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// lookup must be called with mu held. A stale entry is removed.
func (c *Cache[K, V]) lookup(key K) (entry[V], bool) {
	e, ok := c.items[key]
	if !ok {
		return e, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		return e, false
	}
	return e, true
}

// sweep must be called with mu held.
func (c *Cache[K, V]) sweep() int {
	now := c.now()
	evicted := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			evicted++
		}
	}
	return evicted
}
