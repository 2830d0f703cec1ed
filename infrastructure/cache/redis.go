package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"crosspost/infrastructure/configuration"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from configuration and pings it.
func NewRedisClient(ctx context.Context, cfg configuration.RedisClient) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host not configured")
	}
	db := 0
	if cfg.DatabaseName != "" {
		n, err := strconv.Atoi(cfg.DatabaseName)
		if err != nil {
			return nil, fmt.Errorf("redis database must be numeric: %w", err)
		}
		db = n
	}
	port := cfg.Port
	if port == "" {
		port = "6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
