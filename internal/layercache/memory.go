package layercache

import (
	"context"
	"sync"
)

// MemoryCache is a process-local Cache. Useful for single-node setups and
// tests; a multi-builder fleet should use the NATS backend instead.
type MemoryCache struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{blobs: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, digest string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	blob, ok := c.blobs[digest]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return cp, true, nil
}

func (c *MemoryCache) Put(_ context.Context, digest string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	c.blobs[digest] = cp
	return nil
}

func (c *MemoryCache) Close() error { return nil }

// Len reports the number of cached blobs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blobs)
}
