// Package dedup suppresses re-processing of filings seen earlier in the
// process lifetime.
package dedup

import (
	"sort"
	"sync"
	"time"

	"FilingScanner/internal/domain"
)

const (
	DefaultCapacity = 100
	DefaultRetain   = 80
)

// Cache is a bounded recency set keyed by filing identity. Eviction keeps the
// most recently recorded keys; lookups do not refresh recency.
type Cache struct {
	mu       sync.Mutex
	capacity int
	retain   int
	seq      uint64
	entries  map[domain.DedupKey]entry
}

type entry struct {
	at  time.Time
	seq uint64
}

// New builds a cache. retain is clamped to capacity.
func New(capacity, retain int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if retain <= 0 || retain > capacity {
		retain = capacity * DefaultRetain / DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		retain:   retain,
		entries:  make(map[domain.DedupKey]entry, capacity+1),
	}
}

// Seen reports whether the key was recorded and not yet evicted.
func (c *Cache) Seen(key domain.DedupKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Record inserts the key. Existing keys keep their original timestamp.
func (c *Cache) Record(key domain.DedupKey, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordLocked(key, at)
}

// SeenOrRecord atomically checks the key and records it when absent.
// It returns true when the key had already been observed.
func (c *Cache) SeenOrRecord(key domain.DedupKey, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return true
	}
	c.recordLocked(key, at)
	return false
}

// Len is the current number of tracked keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) recordLocked(key domain.DedupKey, at time.Time) {
	if _, ok := c.entries[key]; ok {
		return
	}
	c.seq++
	c.entries[key] = entry{at: at, seq: c.seq}
	if len(c.entries) > c.capacity {
		c.trimLocked()
	}
}

// trimLocked keeps the retain newest entries by insertion sequence.
func (c *Cache) trimLocked() {
	type kv struct {
		key domain.DedupKey
		seq uint64
	}
	all := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kv{key: k, seq: e.seq})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq > all[j].seq })
	for _, item := range all[c.retain:] {
		delete(c.entries, item.key)
	}
}
