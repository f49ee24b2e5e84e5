//go:build integration

package favorites

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"recipebox/models"
	"recipebox/rdx"
	"recipebox/recipes"
	"recipebox/testinfra"
)

func TestIntegration_SoupAndCake(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	catalog := recipes.NewRepository(store, nil)
	favs := NewRepository(store, nil)
	view := NewViewBuilder(favs, catalog)
	ctx := context.Background()

	res, err := catalog.Ingest(ctx, []models.RawRecipe{
		{Title: "Soup", Instructions: "Boil.", Healthiness: 2, Ingredients: bson.M{"salt": "1tsp"}, URL: "u/soup"},
		{Title: "Cake", Instructions: "Bake.", Healthiness: 8, Ingredients: bson.M{"sugar": "1cup"}, URL: "u/cake"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Total)

	byTitle, err := catalog.FindByTitleSubstring(ctx, "o")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	soup := byTitle[0]
	assert.Equal(t, "Soup", soup.Title)

	bySugar, err := catalog.FindByIngredient(ctx, "sugar")
	require.NoError(t, err)
	require.Len(t, bySugar, 1)
	cake := bySugar[0]
	assert.Equal(t, "Cake", cake.Title)

	_, _, err = favs.Add(ctx, "U", cake.ID)
	require.NoError(t, err)
	_, _, err = favs.Add(ctx, "U", soup.ID)
	require.NoError(t, err)

	list, err := view.Build(ctx, "U")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Cake", list[0].Title)
	assert.InDelta(t, 8, list[0].Healthiness, 1e-9)
	assert.Equal(t, "Soup", list[1].Title)
	assert.InDelta(t, 2, list[1].Healthiness, 1e-9)
}

func TestIntegration_AddIsIdempotent(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	favs := NewRepository(store, nil)
	ctx := context.Background()
	recipeID := primitive.NewObjectID()

	first, created, err := favs.Add(ctx, "U", recipeID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, first.ID.IsZero())

	second, created, err := favs.Add(ctx, "U", recipeID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	var mu sync.Mutex
	seen := map[primitive.ObjectID]int{}
	g, gctx := errgroup.WithContext(ctx)
	for range 8 {
		g.Go(func() error {
			fav, created, err := favs.Add(gctx, "V", recipeID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			seen[fav.ID]++
			if created {
				seen[primitive.NilObjectID]++
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, seen, 2)
	assert.Equal(t, 1, seen[primitive.NilObjectID])

	n, err := favs.CountForRecipe(ctx, recipeID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ids, err := favs.ListRecipeIDs(ctx, "V")
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{recipeID}, ids)
}

func TestIntegration_OrderAndRemove(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	favs := NewRepository(store, nil)
	ctx := context.Background()
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	for _, id := range []primitive.ObjectID{b, a, c} {
		_, _, err := favs.Add(ctx, "U", id)
		require.NoError(t, err)
	}

	ids, err := favs.ListRecipeIDs(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{b, a, c}, ids)

	removed, err := favs.Remove(ctx, "U", a)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = favs.Remove(ctx, "U", a)
	require.NoError(t, err)
	assert.False(t, removed)

	ids, err = favs.ListRecipeIDs(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{b, c}, ids)

	other, err := favs.ListRecipeIDs(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestIntegration_OrphansAreSkipped(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	catalog := recipes.NewRepository(store, nil)
	favs := NewRepository(store, nil)
	ctx := context.Background()

	_, err := catalog.Ingest(ctx, []models.RawRecipe{
		{Title: "Soup", Healthiness: 2, Ingredients: bson.M{"salt": "1tsp"}, URL: "u/soup"},
	})
	require.NoError(t, err)
	soups, err := catalog.FindByTitleSubstring(ctx, "Soup")
	require.NoError(t, err)

	_, _, err = favs.Add(ctx, "U", primitive.NewObjectID())
	require.NoError(t, err)
	_, _, err = favs.Add(ctx, "U", soups[0].ID)
	require.NoError(t, err)

	list, err := NewViewBuilder(favs, catalog).Build(ctx, "U")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Soup", list[0].Title)
}

func TestIntegration_CounterTracksChanges(t *testing.T) {
	store := testinfra.NewMongoStore(t)
	counter := rdx.NewCounter(testinfra.NewRedisClient(t), time.Minute)
	favs := NewRepository(store, counter)
	ctx := context.Background()
	recipeID := primitive.NewObjectID()

	_, _, err := favs.Add(ctx, "U", recipeID)
	require.NoError(t, err)

	n, err := favs.CountForRecipe(ctx, recipeID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, _, err = favs.Add(ctx, "V", recipeID)
	require.NoError(t, err)
	cached, ok := counter.Get(ctx, recipeID.Hex())
	require.True(t, ok)
	assert.EqualValues(t, 2, cached)

	_, err = favs.Remove(ctx, "U", recipeID)
	require.NoError(t, err)
	n, err = favs.CountForRecipe(ctx, recipeID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
