package repository

import (
	"context"
	"time"
)

// Loader produces a fresh value for a cache miss.
type Loader func(ctx context.Context) ([]byte, error)

// ISnapshotCache memoizes derived values with get-or-refresh semantics.
type ISnapshotCache interface {
	GetOrRefresh(ctx context.Context, key string, ttl time.Duration, load Loader) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string) error
}
