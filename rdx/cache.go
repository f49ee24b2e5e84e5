package rdx

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"recipebox/logging"
	"recipebox/models"
)

const (
	recipeKeyPrefix = "recipe:"
	// generationKey is bumped by every Purge. It sits outside recipeKeyPrefix
	// so the purge scan never deletes it.
	generationKey = "catalog:generation"
)

func recipeKey(gen int64, id string) string {
	return recipeKeyPrefix + strconv.FormatInt(gen, 10) + ":" + id
}

// RecipeCache caches point lookups by id. Entries are keyed by the catalog
// generation read before the store lookup, so a lookup that raced an ingest
// writes under a generation no reader uses any more.
type RecipeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRecipeCache returns nil when rdb is nil.
func NewRecipeCache(rdb *redis.Client, ttl time.Duration) *RecipeCache {
	if rdb == nil {
		return nil
	}
	return &RecipeCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current catalog generation. ok is false when the
// cache is off or Redis failed, and the caller should then skip the cache.
func (c *RecipeCache) Generation(ctx context.Context) (gen int64, ok bool) {
	if c == nil {
		return 0, false
	}
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("catalog generation read failed")
		return 0, false
	}
	return gen, true
}

// Get reports a miss for any Redis failure.
func (c *RecipeCache) Get(ctx context.Context, gen int64, id string) (models.Recipe, bool) {
	var recipe models.Recipe
	if c == nil {
		return recipe, false
	}
	raw, err := c.rdb.Get(ctx, recipeKey(gen, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Ctx(ctx).Warn().Err(err).Str("recipe_id", id).Msg("recipe cache read failed")
		}
		return recipe, false
	}
	if err := json.Unmarshal(raw, &recipe); err != nil {
		return recipe, false
	}
	return recipe, true
}

// Set stores recipe under gen, which must be the generation read before the
// recipe was loaded from the store.
func (c *RecipeCache) Set(ctx context.Context, gen int64, recipe models.Recipe) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(recipe)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, recipeKey(gen, recipe.ID.Hex()), raw, c.ttl).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("recipe_id", recipe.ID.Hex()).Msg("recipe cache write failed")
	}
}

// Purge moves the catalog to a new generation, then drops every cached
// recipe. SCAN is used instead of KEYS so a large cache does not block the server.
func (c *RecipeCache) Purge(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return 0, err
	}
	var purged int
	iter := c.rdb.Scan(ctx, 0, recipeKeyPrefix+"*", 500).Iterator()
	batch := make([]string, 0, 500)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return purged, err
			}
			purged += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return purged, err
	}
	if len(batch) > 0 {
		n, err := c.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return purged, err
		}
		purged += int(n)
	}
	return purged, nil
}
