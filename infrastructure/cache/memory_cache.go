package cache

import (
	"context"
	"sync"
	"time"

	"crosspost/domain/repository"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySnapshotCache is the in-process ISnapshotCache used without Redis.
type MemorySnapshotCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemorySnapshotCache(now func() time.Time) *MemorySnapshotCache {
	if now == nil {
		now = time.Now
	}
	return &MemorySnapshotCache{entries: make(map[string]memoryEntry), now: now}
}

func (c *MemorySnapshotCache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, load repository.Loader) ([]byte, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.data, nil
	}
	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return data, nil
}

func (c *MemorySnapshotCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

var _ repository.ISnapshotCache = (*MemorySnapshotCache)(nil)
