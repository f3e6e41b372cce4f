// Package fetch coordinates cached, persisted, and network TLE lookups.
package fetch

import (
	"sync"
	"time"

	"github.com/cywf/tle-fetcher/internal/tle"
)

// Entry is a TLE together with its provenance, the unit held by the
// memory cache and repositories.
type Entry struct {
	Record    tle.Record
	FetchedAt time.Time
	Source    string
}

// Age reports how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// IsStale reports whether the entry is older than ttl. A non-positive
// ttl means entries never go stale.
func (e Entry) IsStale(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return false
	}
	return e.Age(now) > ttl
}

// MemoryCache is a TTL-aware in-process cache keyed by catalog identifier.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the cached entry for id, or nil. When ttl is positive,
// stale entries are withheld unless allowStale is set.
func (c *MemoryCache) Get(id string, ttl time.Duration, allowStale bool) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil
	}
	if ttl > 0 && entry.IsStale(ttl, c.now()) && !allowStale {
		return nil
	}
	return &entry
}

// Set stores entry under its record's object identifier.
func (c *MemoryCache) Set(entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Record.ObjectID] = entry
}

// Delete removes the entry for id, if present.
func (c *MemoryCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Clear drops every entry.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}
