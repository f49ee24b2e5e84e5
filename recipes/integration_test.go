//go:build integration

package recipes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"recipebox/models"
	"recipebox/rdx"
	"recipebox/testinfra"
)

func catalogFixture() []models.RawRecipe {
	return []models.RawRecipe{
		{Title: "Soup", Instructions: "Boil.", Healthiness: 2, Ingredients: bson.M{"salt": "1tsp"}, URL: "u/soup"},
		{Title: "Cake", Instructions: []any{"Mix", "Bake"}, Healthiness: 8, Ingredients: bson.M{"sugar": "1cup"}, URL: "u/cake"},
		{Title: "Tomato soup", Instructions: "Blend.", Healthiness: 1, Ingredients: bson.M{"salt": nil, "tomato": "4"}, URL: "u/tomato"},
		{Title: "Pie (sweet)", Instructions: "Bake.", Healthiness: 8, Ingredients: bson.M{"1.5 cups flour": "", "sugar": "2tbsp"}, URL: "u/pie"},
	}
}

func healthiness(recipes []models.Recipe) []float64 {
	out := make([]float64, len(recipes))
	for i, r := range recipes {
		out[i] = r.Healthiness
	}
	return out
}

func titles(recipes []models.Recipe) []string {
	out := make([]string, len(recipes))
	for i, r := range recipes {
		out[i] = r.Title
	}
	return out
}

func TestIntegration_IngestIsIdempotent(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()

	first, err := repo.Ingest(ctx, catalogFixture())
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Processed: 4, Inserted: 4, Total: 4}, first)

	second := catalogFixture()
	second[0].FSALights = bson.M{"salt": "amber"}
	res, err := repo.Ingest(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Processed: 4, Updated: 4, Total: 4}, res)

	soups, err := repo.FindByTitleSubstring(ctx, "Soup")
	require.NoError(t, err)
	require.Len(t, soups, 1)
	assert.Equal(t, bson.M{"salt": "amber"}, soups[0].FSALights)
	assert.False(t, soups[0].CreatedAt.IsZero())
	assert.False(t, soups[0].UpdatedAt.Before(soups[0].CreatedAt))
}

func TestIntegration_ConcurrentIngestDoesNotDuplicate(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	repo := NewRepository(store, nil)

	g, ctx := errgroup.WithContext(context.Background())
	for range 4 {
		g.Go(func() error {
			_, err := repo.Ingest(ctx, catalogFixture())
			return err
		})
	}
	require.NoError(t, g.Wait())

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestIntegration_TitleSearch(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()
	_, err := repo.Ingest(ctx, catalogFixture())
	require.NoError(t, err)

	all, err := repo.FindByTitleSubstring(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 8, 8}, healthiness(all))

	// Equal scores fall back to insertion order.
	assert.Equal(t, []string{"Tomato soup", "Soup", "Cake", "Pie (sweet)"}, titles(all))

	o, err := repo.FindByTitleSubstring(ctx, "o")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato soup", "Soup"}, titles(o))

	literal, err := repo.FindByTitleSubstring(ctx, "(sweet")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pie (sweet)"}, titles(literal))

	dot, err := repo.FindByTitleSubstring(ctx, ".")
	require.NoError(t, err)
	assert.Empty(t, dot)

	nul, err := repo.FindByTitleSubstring(ctx, "\x00")
	require.NoError(t, err)
	assert.Empty(t, nul)

	_, err = repo.Ingest(ctx, []models.RawRecipe{{Title: "Odd\x00Pie", Healthiness: 5, URL: "u/odd"}})
	require.NoError(t, err)
	nul, err = repo.FindByTitleSubstring(ctx, "d\x00P")
	require.NoError(t, err)
	assert.Equal(t, []string{"Odd\x00Pie"}, titles(nul))

	noKey, err := repo.FindByIngredient(ctx, "sa\x00lt")
	require.NoError(t, err)
	assert.Empty(t, noKey)
}

func TestIntegration_IngredientSearch(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	repo := NewRepository(store, nil)
	ctx := context.Background()
	_, err := repo.Ingest(ctx, catalogFixture())
	require.NoError(t, err)

	salt, err := repo.FindByIngredient(ctx, "salt")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato soup", "Soup"}, titles(salt), "null descriptors still count as present")

	pepper, err := repo.FindByIngredient(ctx, "pepper")
	require.NoError(t, err)
	assert.Empty(t, pepper)

	sugar, err := repo.FindByIngredient(ctx, "sugar")
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 8}, healthiness(sugar))

	dotted, err := repo.FindByIngredient(ctx, "1.5 cups flour")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pie (sweet)"}, titles(dotted))
}

func TestIntegration_FindByIDWithCache(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	cache := rdx.NewRecipeCache(testinfra.NewRedisClient(t), time.Minute)
	repo := NewRepository(store, cache)
	ctx := context.Background()
	_, err := repo.Ingest(ctx, catalogFixture())
	require.NoError(t, err)

	cakes, err := repo.FindByIngredient(ctx, "sugar")
	require.NoError(t, err)
	id := cakes[0].ID.Hex()

	got, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	gen, ok := cache.Generation(ctx)
	require.True(t, ok)
	cached, hit := cache.Get(ctx, gen, id)
	require.True(t, hit)
	assert.Equal(t, got.Title, cached.Title)

	again, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)

	_, err = repo.Ingest(ctx, catalogFixture()[:1])
	require.NoError(t, err)
	next, ok := cache.Generation(ctx)
	require.True(t, ok)
	assert.Greater(t, next, gen)
	_, hit = cache.Get(ctx, next, id)
	assert.False(t, hit, "ingest purges the cache")
}

func TestIntegration_LookupRacingIngestDoesNotServeStale(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	cache := rdx.NewRecipeCache(testinfra.NewRedisClient(t), time.Minute)
	repo := NewRepository(store, cache)
	ctx := context.Background()
	_, err := repo.Ingest(ctx, catalogFixture())
	require.NoError(t, err)

	soups, err := repo.FindByTitleSubstring(ctx, "Soup")
	require.NoError(t, err)
	require.Len(t, soups, 1)
	stale := soups[0]

	// A lookup read the generation and the old document, then an ingest ran
	// before the lookup wrote its cache entry.
	before, ok := cache.Generation(ctx)
	require.True(t, ok)
	updated := catalogFixture()
	updated[0].FSALights = bson.M{"salt": "red"}
	_, err = repo.Ingest(ctx, updated)
	require.NoError(t, err)
	cache.Set(ctx, before, stale)

	got, err := repo.FindByID(ctx, stale.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, bson.M{"salt": "red"}, got.FSALights)
}
