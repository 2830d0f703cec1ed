package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// envelope carries its own expiry so freshness follows the injected clock
// rather than only the Redis TTL.
type envelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// RedisSnapshotCache stores computed snapshots in Redis. Concurrent misses on
// one key share a single load.
type RedisSnapshotCache struct {
	client *redis.Client
	prefix string
	now    func() time.Time
	group  singleflight.Group
}

type RedisOption func(*RedisSnapshotCache)

func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisSnapshotCache) { c.prefix = prefix }
}

func WithClock(now func() time.Time) RedisOption {
	return func(c *RedisSnapshotCache) { c.now = now }
}

func NewRedisSnapshotCache(client *redis.Client, opts ...RedisOption) *RedisSnapshotCache {
	c := &RedisSnapshotCache{client: client, prefix: "crosspost:", now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisSnapshotCache) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, load repository.Loader) ([]byte, error) {
	full := c.prefix + key
	raw, err := c.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var env envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && c.now().Before(env.ExpiresAt) {
			return env.Data, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		return nil, err
	}

	v, err, _ := c.group.Do(full, func() (interface{}, error) {
		data, err := load(ctx)
		if err != nil {
			return nil, err
		}
		env, err := json.Marshal(envelope{ExpiresAt: c.now().Add(ttl), Data: data})
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, full, env, ttl).Err(); err != nil {
			// the value is still good for this caller
			logger.GetLogger().WithField("key", full).WithField("error", err.Error()).Warn("snapshot cache write failed")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *RedisSnapshotCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.client.Del(ctx, full...).Err()
}

var _ repository.ISnapshotCache = (*RedisSnapshotCache)(nil)
