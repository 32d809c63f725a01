package clientdata

import (
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// MemoryCache is a process-wide TTL cache keyed by comparable structured keys.
// Identical concurrent misses are not de-duplicated: both callers fetch and the
// last writer wins.
type MemoryCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]memoryEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache whose entries expire ttl after being set
func NewMemoryCache[K comparable, V any](ttl time.Duration) *MemoryCache[K, V] {
	return &MemoryCache[K, V]{
		entries: make(map[K]memoryEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the value for key if present and not expired
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key with the cache TTL
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key with an explicit TTL
func (c *MemoryCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = memoryEntry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key
func (c *MemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Evict removes all expired entries and returns how many were dropped
func (c *MemoryCache[K, V]) Evict() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			evicted++
		}
	}
	return evicted
}

// Clear drops every entry
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]memoryEntry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
