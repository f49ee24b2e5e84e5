package rdx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// favoriteCountKey builds the Redis key holding a recipe's favorite count.
func favoriteCountKey(recipeID string) string {
	return "fav:count:" + recipeID
}

// incrIfPresent only adjusts counters that were seeded from Mongo, so a cold
// key never starts counting from zero.
var incrIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("INCRBY", KEYS[1], ARGV[1])
end
return false
`)

// Counter keeps per-recipe favorite counts. Counts are seeded lazily from
// Mongo and expire after ttl, which bounds any drift.
type Counter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCounter returns nil when rdb is nil.
func NewCounter(rdb *redis.Client, ttl time.Duration) *Counter {
	if rdb == nil {
		return nil
	}
	return &Counter{rdb: rdb, ttl: ttl}
}

func (c *Counter) Incr(ctx context.Context, recipeID string) {
	c.add(ctx, recipeID, 1)
}

func (c *Counter) Decr(ctx context.Context, recipeID string) {
	c.add(ctx, recipeID, -1)
}

func (c *Counter) add(ctx context.Context, recipeID string, delta int64) {
	if c == nil {
		return
	}
	err := incrIfPresent.Run(ctx, c.rdb, []string{favoriteCountKey(recipeID)}, delta).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		// The key is dropped so the next read reseeds from Mongo.
		_ = c.rdb.Del(ctx, favoriteCountKey(recipeID)).Err()
	}
}

// Get returns the cached count; ok is false on a miss or when Redis is off.
func (c *Counter) Get(ctx context.Context, recipeID string) (n int64, ok bool) {
	if c == nil {
		return 0, false
	}
	n, err := c.rdb.Get(ctx, favoriteCountKey(recipeID)).Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// Seed stores a count read from Mongo unless another request already did.
func (c *Counter) Seed(ctx context.Context, recipeID string, n int64) {
	if c == nil {
		return
	}
	_ = c.rdb.SetNX(ctx, favoriteCountKey(recipeID), n, c.ttl).Err()
}
