package edgar

import (
	"context"
	"sync"

	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
)

// CycleCache memoizes entity lookups within one poll cycle. Unknown results
// are not cached so a later filing gets another try.
type CycleCache struct {
	next ports.EntityResolver

	mu      sync.Mutex
	entries map[string]domain.EntityInfo
}

var _ ports.EntityResolver = (*CycleCache)(nil)

func NewCycleCache(next ports.EntityResolver) *CycleCache {
	return &CycleCache{next: next, entries: make(map[string]domain.EntityInfo)}
}

func (c *CycleCache) Resolve(ctx context.Context, registrantID string) domain.EntityInfo {
	c.mu.Lock()
	info, ok := c.entries[registrantID]
	c.mu.Unlock()
	if ok {
		return info
	}

	info = c.next.Resolve(ctx, registrantID)
	if info.Known() || info.HasTicker() {
		c.mu.Lock()
		c.entries[registrantID] = info
		c.mu.Unlock()
	}
	return info
}

// Reset drops every memoized entity; called at the start of each cycle.
func (c *CycleCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]domain.EntityInfo)
	c.mu.Unlock()
}
