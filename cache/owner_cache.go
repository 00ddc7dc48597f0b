package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the owner query cache when the caller does not.
const DefaultSize = 1024

// stamped pairs a memoized value with the epoch it was computed under.
type stamped[V any] struct {
	value V
	gen   uint64
}

// QueryCache memoizes per-owner query results. A hit requires the stored
// stamp to equal the shared generation's current epoch; anything older is
// treated as absent, so a single Bump invalidates the whole cache without
// touching it. The LRU bound keeps many-owner processes from growing the
// cache without limit. A miss is always a correctness-safe outcome.
type QueryCache[V any] struct {
	gen   *Generation
	cache *lru.Cache[FixedKey, stamped[V]]
	mu    sync.RWMutex
}

// NewQueryCache creates a cache validated against gen. Sizes below one fall
// back to DefaultSize.
func NewQueryCache[V any](size int, gen *Generation) *QueryCache[V] {
	if size < 1 {
		size = DefaultSize
	}
	cache, _ := lru.New[FixedKey, stamped[V]](size)

	return &QueryCache[V]{
		gen:   gen,
		cache: cache,
	}
}

// Get returns the memoized value if its stamp is still current.
func (c *QueryCache[V]) Get(key FixedKey) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if s, ok := c.cache.Get(key); ok && s.gen == c.gen.Current() {
		return s.value, true
	}

	var zero V
	return zero, false
}

// Put stores a value stamped with the current epoch.
func (c *QueryCache[V]) Put(key FixedKey, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, stamped[V]{value: value, gen: c.gen.Current()})
}

// GetOrCompute returns the memoized value or computes and stores it. The
// epoch is captured before compute runs: if an invalidation lands in between,
// the stored entry is already stale and the next Get recomputes.
func (c *QueryCache[V]) GetOrCompute(key FixedKey, compute func() V) V {
	// Fast path: try to get with read lock
	c.mu.RLock()
	if s, ok := c.cache.Get(key); ok && s.gen == c.gen.Current() {
		c.mu.RUnlock()
		return s.value
	}
	c.mu.RUnlock()

	gen := c.gen.Current()
	value := compute()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := c.cache.Get(key); ok && s.gen == c.gen.Current() {
		return s.value
	}

	c.cache.Add(key, stamped[V]{value: value, gen: gen})
	return value
}

// Remove drops one key, e.g. when its owner is released.
func (c *QueryCache[V]) Remove(key FixedKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Remove(key)
}

// Purge drops every entry. Generation bumps already invalidate logically;
// Purge additionally releases the memory, for teardown paths.
func (c *QueryCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
}

// Len reports the number of resident entries, stale ones included.
func (c *QueryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache.Len()
}
