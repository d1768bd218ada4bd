// Package cache provides a small TTL cache used to bound the cost of
// collaborator lookups on the request hot path.
package cache

import (
	"sync"
	"time"
)

// TTL is an in-memory cache with time-based expiration and a size bound.
// Construct one instance per concern and pass it by reference; it is safe
// for concurrent use.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
	ttl     time.Duration
	maxSize int
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Option configures a TTL cache.
type Option func(*config)

type config struct {
	ttl     time.Duration
	maxSize int
}

// WithTTL sets the entry time-to-live.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithMaxSize sets the maximum number of entries.
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// New creates a TTL cache. Defaults: 30s TTL, 10000 entries.
func New[K comparable, V any](opts ...Option) *TTL[K, V] {
	cfg := config{ttl: 30 * time.Second, maxSize: 10000}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TTL[K, V]{
		entries: make(map[K]*entry[V]),
		ttl:     cfg.ttl,
		maxSize: cfg.maxSize,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value under key.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if at capacity.
	if len(c.entries) >= c.maxSize {
		c.evictExpired()
		if len(c.entries) >= c.maxSize {
			c.evictOne()
		}
	}

	c.entries[key] = &entry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes the entry for key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Purge removes every entry.
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	c.entries = make(map[K]*entry[V])
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (c *TTL[K, V]) evictExpired() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (c *TTL[K, V]) evictOne() {
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}
