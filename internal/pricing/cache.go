package pricing

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is the default lifetime of a cached query result.
const DefaultCacheTTL = time.Hour

// Cache is a thread-safe, time-bounded store of catalog query results.
//
// Entries are stored and returned as copies, so a reader never observes a record
// that another goroutine is still writing. Concurrent misses for the same key are
// collapsed into a single fetch; a duplicate fetch after a race is harmless.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	records   []Record
	expiresAt time.Time
}

// NewCache creates a Cache whose entries live for ttl. A non-positive ttl uses
// DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the cached records for key, if present and not expired.
func (c *Cache) Get(key string) ([]Record, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false
	}
	return cloneRecords(e.records), true
}

// Set stores a copy of records under key.
func (c *Cache) Set(key string, records []Record) {
	stored := cloneRecords(records)
	if stored == nil {
		stored = []Record{}
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{records: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries and returns how many were removed.
func (c *Cache) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// load returns the cached records for key or runs fetch to fill the entry.
// The boolean reports a cache hit. Errors are never cached, and neither is a
// result that fetch marks as not storable (a degraded upstream answer).
func (c *Cache) load(key string, fetch func() ([]Record, bool, error)) ([]Record, bool, error) {
	if records, ok := c.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return records, true, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if records, ok := c.Get(key); ok {
			return records, nil
		}
		records, store, err := fetch()
		if err != nil {
			return nil, err
		}
		if store {
			c.Set(key, records)
		}
		return records, nil
	})
	if err != nil {
		return nil, false, err
	}
	return cloneRecords(v.([]Record)), false, nil
}
