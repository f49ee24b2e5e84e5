// Package rdx holds the optional Redis side of recipebox: a read-through
// cache for recipe lookups and per-recipe favorite counters.
//
// Every type here is nil-safe. A nil *redis.Client disables the feature and
// callers fall back to Mongo.
package rdx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"recipebox/config"
)

// Connect returns nil, nil when no address is configured.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
