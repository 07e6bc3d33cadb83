// Package cache provides a bounded, thread-safe LRU cache used to memoize
// retrieval and generation results. Capacity is enforced entry-by-entry:
// each insert evicts at most the single least-recently-used entry, so the
// cache never exceeds its configured capacity after any Put completes.
package cache

import (
	"container/list"
	"fmt"
	"sync"
)

// LRU is a fixed-capacity cache with least-recently-used eviction.
// Both Get (on hit) and Put count as a use and move the entry to the
// most-recently-used position. Entries have no TTL; they live until evicted
// by capacity pressure or Clear. Safe for concurrent use — a single mutex
// guards the whole read-modify-write sequence, which is fine for this
// low-contention, short-critical-section structure.
type LRU[K comparable, V any] struct {
	// mu guards every field below.
	mu sync.Mutex

	// capacity is the maximum number of entries (> 0, fixed at construction).
	capacity int

	// order holds *entry values, front = most recently used.
	order *list.List

	// items maps keys to their list elements for O(1) lookup.
	items map[K]*list.Element
}

// entry is the payload stored in each list element.
type entry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRU constructs an LRU cache with the given capacity.
// Returns an error if capacity is not positive.
func NewLRU[K comparable, V any](capacity int) (*LRU[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache: capacity must be positive, got %d", capacity)
	}
	return &LRU[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}, nil
}

// Get returns the value for key and whether it was present.
// A hit moves the entry to the most-recently-used position.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[K, V]).value, true
}

// Put inserts or updates the value for key, marking it most recently used.
// When the cache is at capacity and key is new, the least-recently-used
// entry is evicted — exactly one, never more.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry[K, V]).key)
		}
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Len returns the current number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries. Used after re-ingestion so stale results are
// never served against a rebuilt index.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}
