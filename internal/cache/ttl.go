// Package cache provides a small in-memory TTL cache shared by the source
// fetchers. Each fetcher owns its own instance with a source-specific TTL.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TTL is a thread-safe time-bounded cache. Entries expire after the
// configured TTL; when the cache is full the oldest entry is evicted.
type TTL[V any] struct {
	ttl        time.Duration
	maxEntries int
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// New creates a TTL cache backed by the real clock.
func New[V any](ttl time.Duration, maxEntries int) *TTL[V] {
	return NewWithClock[V](ttl, maxEntries, clockwork.NewRealClock())
}

// NewWithClock creates a TTL cache with an injected clock so tests can
// freeze time.
func NewWithClock[V any](ttl time.Duration, maxEntries int, clock clockwork.Clock) *TTL[V] {
	if maxEntries <= 0 {
		maxEntries = 32
	}
	return &TTL[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if present and not expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.clock.Since(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry when full.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = entry[V]{value: value, storedAt: c.clock.Now()}
}

// Len returns the number of entries, including any not yet expired-swept.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTL[V]) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
