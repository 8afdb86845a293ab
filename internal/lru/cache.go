// Package lru implements a fixed-capacity least-recently-used cache with
// per-entry eviction callbacks. A Cache is owned by a single goroutine and is
// not safe for concurrent use.
package lru

import (
	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/errors"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// EvictFunc is called when an entry leaves the cache, either because it was
// evicted to make room, removed, or the cache was purged.
type EvictFunc[K comparable, V any] func(key K, value V)

type entry[K comparable, V any] struct {
	value   V
	onEvict EvictFunc[K, V]
}

// Cache holds at most Cap() entries.
type Cache[K comparable, V any] struct {
	c       *simplelru.LRU[K, entry[K, V]]
	onEvict EvictFunc[K, V]

	capacity  int
	evictions int
}

// New returns a cache holding at most capacity entries. onEvict, if non-nil,
// is called for entries inserted without their own callback.
func New[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) (*Cache[K, V], error) {
	if capacity <= 0 {
		return nil, errors.Errorf("invalid cache capacity %d", capacity)
	}

	cache := &Cache[K, V]{onEvict: onEvict, capacity: capacity}

	c, err := simplelru.NewLRU(capacity, cache.evict)
	if err != nil {
		return nil, errors.Wrap(err, "simplelru.NewLRU")
	}
	cache.c = c
	return cache, nil
}

func (c *Cache[K, V]) evict(key K, e entry[K, V]) {
	c.evictions++
	debug.Log("evict %v", key)

	fn := e.onEvict
	if fn == nil {
		fn = c.onEvict
	}
	if fn != nil {
		fn(key, e.value)
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	e, ok := c.c.Get(key)
	return e.value, ok
}

// Peek returns the value for key without updating its recency.
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	e, ok := c.c.Peek(key)
	return e.value, ok
}

// Contains reports whether key is cached without updating its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	return c.c.Contains(key)
}

// Add inserts value as the most recently used entry. If the cache is full, the
// least recently used entry is evicted first. onEvict, if non-nil, is called
// instead of the cache-wide callback when this entry leaves the cache. Adding
// an existing key evicts the old entry. Add reports whether an eviction to
// make room took place.
func (c *Cache[K, V]) Add(key K, value V, onEvict EvictFunc[K, V]) (evicted bool) {
	if c.c.Contains(key) {
		c.c.Remove(key)
	}
	return c.c.Add(key, entry[K, V]{value: value, onEvict: onEvict})
}

// Remove drops key from the cache, calling its eviction callback.
func (c *Cache[K, V]) Remove(key K) bool {
	return c.c.Remove(key)
}

// RemoveOldest evicts the least recently used entry.
func (c *Cache[K, V]) RemoveOldest() (K, V, bool) {
	k, e, ok := c.c.RemoveOldest()
	return k, e.value, ok
}

// Keys returns the cached keys from oldest to newest.
func (c *Cache[K, V]) Keys() []K {
	return c.c.Keys()
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	return c.c.Len()
}

// Cap returns the capacity of the cache.
func (c *Cache[K, V]) Cap() int {
	return c.capacity
}

// Evictions returns the number of entries that have left the cache.
func (c *Cache[K, V]) Evictions() int {
	return c.evictions
}

// Purge evicts all entries, calling their eviction callbacks.
func (c *Cache[K, V]) Purge() {
	c.c.Purge()
}
