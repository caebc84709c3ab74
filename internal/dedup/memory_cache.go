package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/newswatch/newswatch/internal/core"
)

// MemoryCache is an in-process core.DedupCache for tests and single-node runs
// without Redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	clock   core.Clock
}

type memoryEntry struct {
	contentFP string
	expiresAt time.Time
}

// NewMemoryCache constructs a MemoryCache. A zero ttl means entries never
// expire.
func NewMemoryCache(ttl time.Duration, clock core.Clock) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Seen implements core.DedupCache.
func (c *MemoryCache) Seen(_ context.Context, urlFP string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[urlFP]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, urlFP)
		return "", false, nil
	}
	return entry.contentFP, true, nil
}

// Remember implements core.DedupCache.
func (c *MemoryCache) Remember(_ context.Context, urlFP, contentFP string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{contentFP: contentFP}
	if c.ttl > 0 {
		entry.expiresAt = c.clock.Now().Add(c.ttl)
	}
	c.entries[urlFP] = entry
	return nil
}
