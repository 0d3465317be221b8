package assets

import (
	"context"
	"sync"
)

// Info is immutable asset metadata.
type Info struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	UnitName string `json:"unit_name"`
	Decimals uint32 `json:"decimals"`
}

// Algo is the native asset.
var Algo = Info{ID: 0, Name: "Algorand", UnitName: "ALGO", Decimals: 6}

// Cache stores asset metadata. Entries are never evicted or changed, so a
// concurrent Set of the same id is harmless.
type Cache interface {
	Get(ctx context.Context, id uint64) (Info, bool, error)
	Set(ctx context.Context, info Info) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uint64]Info
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[uint64]Info)}
}

func (c *MemoryCache) Get(_ context.Context, id uint64) (Info, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.entries[id]
	return info, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, info Info) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.ID] = info
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
