package tool

import (
	"sync"
	"time"

	"github.com/nexuslabs/nexus/pkg/types"
)

// cacheEntry pairs a result with its expiry time.
type cacheEntry struct {
	result    types.ToolResult
	expiresAt time.Time
}

// resultCache is an advisory per-tool TTL cache. A hit returns the stored
// result with its Cached flag set; an expired entry is removed on read.
// Safe for concurrent use.
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func newResultCache() *resultCache {
	return &resultCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *resultCache) get(toolID string) (types.ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[toolID]
	if !ok {
		return types.ToolResult{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, toolID)
		return types.ToolResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(toolID string, result types.ToolResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[toolID] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(ttl),
	}
}
