package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"headsup/pkg/store"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// Layered keeps recently used entries in memory in front of a persistent
// store. Entries read from the store are promoted to memory.
type Layered struct {
	mem     *expirable.LRU[string, []byte]
	backing store.CacheStore
}

// NewLayered creates a cache holding up to size entries in memory for ttl.
// backing may be nil for a memory-only cache.
func NewLayered(backing store.CacheStore, size int, ttl time.Duration) *Layered {
	if size <= 0 {
		size = 128
	}
	return &Layered{
		mem:     expirable.NewLRU[string, []byte](size, nil, ttl),
		backing: backing,
	}
}

func (c *Layered) GetCache(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.mem.Get(key); ok {
		return val, true
	}
	if c.backing == nil {
		return nil, false
	}
	val, ok := c.backing.GetCache(ctx, key)
	if ok {
		c.mem.Add(key, val)
	}
	return val, ok
}

func (c *Layered) SetCache(ctx context.Context, key string, val []byte) error {
	c.mem.Add(key, val)
	if c.backing == nil {
		return nil
	}
	if err := c.backing.SetCache(ctx, key, val); err != nil {
		slog.Warn("Persisting cache entry failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Len returns the number of entries held in memory.
func (c *Layered) Len() int {
	return c.mem.Len()
}
