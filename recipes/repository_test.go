package recipes

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"recipebox/db"
	"recipebox/models"
)

const recipesNS = "recipebox.recipes"

func newMockRepo(mt *mtest.T) *Repository {
	return NewRepository(db.NewStore(mt.Client, mt.DB), nil)
}

func recipeDoc(id primitive.ObjectID, title string, healthiness float64, ingredients bson.D) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: title},
		{Key: "instructions", Value: "Cook."},
		{Key: "healthiness", Value: healthiness},
		{Key: "ingredients", Value: ingredients},
		{Key: "url", Value: "https://example.com/" + title},
		{Key: "naturalKey", Value: "k-" + title},
		{Key: "createdAt", Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestRepository_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch,
			recipeDoc(id, "Soup", 2, bson.D{{Key: "salt", Value: "1tsp"}})))

		recipe, err := newMockRepo(mt).FindByID(context.Background(), id.Hex())
		require.NoError(t, err)
		assert.Equal(t, id, recipe.ID)
		assert.Equal(t, "Soup", recipe.Title)
		assert.Equal(t, "1tsp", recipe.Ingredients["salt"])
		assert.Equal(t, "k-Soup", recipe.NaturalKey)
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch))

		_, err := newMockRepo(mt).FindByID(context.Background(), primitive.NewObjectID().Hex())
		assert.ErrorIs(t, err, db.ErrNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		_, err := newMockRepo(mt).FindByID(context.Background(), "not-an-id")
		assert.ErrorIs(t, err, db.ErrNotFound)
	})
}

func TestRepository_FindByTitleSubstring(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes in server order", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch,
			recipeDoc(primitive.NewObjectID(), "Tomato soup", 1, bson.D{}),
			recipeDoc(primitive.NewObjectID(), "Onion soup", 3, bson.D{}),
		))

		recipes, err := newMockRepo(mt).FindByTitleSubstring(context.Background(), "soup")
		require.NoError(t, err)
		require.Len(t, recipes, 2)
		assert.Equal(t, "Tomato soup", recipes[0].Title)
		assert.Equal(t, "Onion soup", recipes[1].Title)
	})

	mt.Run("nul byte is matched literally", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch))

		recipes, err := newMockRepo(mt).FindByTitleSubstring(context.Background(), "\x00")
		require.NoError(t, err)
		assert.NotNil(t, recipes)
		assert.Empty(t, recipes)
	})

	mt.Run("no match is an empty list", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch))

		recipes, err := newMockRepo(mt).FindByTitleSubstring(context.Background(), "(unbalanced[")
		require.NoError(t, err)
		assert.NotNil(t, recipes)
		assert.Empty(t, recipes)
	})
}

func TestRepository_FindByIngredient_UnstorableNames(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	for name, ingredient := range map[string]string{"empty": "", "nul byte": "sa\x00lt"} {
		mt.Run(name, func(mt *mtest.T) {
			recipes, err := newMockRepo(mt).FindByIngredient(context.Background(), ingredient)
			require.NoError(t, err)
			assert.NotNil(t, recipes)
			assert.Empty(t, recipes)
		})
	}
}

func TestTitleFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, titleFilter(""))
	assert.Equal(t, bson.M{"title": bson.M{"$regex": `Pie \(sweet`}}, titleFilter("Pie (sweet"))

	f := titleFilter("a\x00b")
	require.Contains(t, f, "$expr")
	assert.NotContains(t, f, "title")
	_, err := bson.Marshal(f)
	assert.NoError(t, err)
}

func TestRepository_Ingest(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	records := func() []models.RawRecipe {
		return []models.RawRecipe{
			{Title: "Soup", Healthiness: 2, Ingredients: bson.M{"salt": "1tsp"}, URL: "u1"},
			{Title: "Cake", Healthiness: 8, Ingredients: bson.M{"sugar": "1cup"}, URL: "u2"},
		}
	}

	mt.Run("counts inserts and updates", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(
				bson.E{Key: "n", Value: 1},
				bson.E{Key: "nModified", Value: 0},
				bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: primitive.NewObjectID()}}}},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(2)}}),
		)

		res, err := newMockRepo(mt).Ingest(context.Background(), records())
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Processed: 2, Inserted: 1, Updated: 1, Total: 2}, res)
	})

	mt.Run("duplicate key is retried as an update", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateCursorResponse(0, recipesNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		res, err := newMockRepo(mt).Ingest(context.Background(), records()[:1])
		require.NoError(t, err)
		assert.Equal(t, IngestResult{Processed: 1, Updated: 1, Total: 1}, res)
	})

	mt.Run("invalid record writes nothing", func(mt *mtest.T) {
		recs := records()
		recs[1].Healthiness = math.NaN()

		res, err := newMockRepo(mt).Ingest(context.Background(), recs)
		require.ErrorIs(t, err, ErrInvalidRecord)
		assert.Contains(t, err.Error(), "record 1")
		assert.Zero(t, res.Processed)
	})

	mt.Run("unstorable record writes nothing", func(mt *mtest.T) {
		recs := records()
		recs[1].Ingredients = bson.M{"sa\x00lt": "1tsp"}

		res, err := newMockRepo(mt).Ingest(context.Background(), recs)
		require.ErrorIs(t, err, ErrInvalidRecord)
		assert.Contains(t, err.Error(), "record 1")
		assert.Zero(t, res.Processed)
	})

	mt.Run("cancelled context stops the pass", func(mt *mtest.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newMockRepo(mt).Ingest(ctx, records())
		assert.ErrorIs(t, err, db.ErrUnavailable)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIngredientFilter(t *testing.T) {
	assert.Equal(t,
		bson.M{"ingredients.salt": bson.M{"$exists": true}},
		ingredientFilter("salt"))

	assert.Equal(t,
		bson.M{"ingredients.olive oil": bson.M{"$exists": true}},
		ingredientFilter("olive oil"))

	for _, name := range []string{"1.5 cups flour", "$price"} {
		f := ingredientFilter(name)
		require.Contains(t, f, "$expr", name)
		assert.NotContains(t, f, "ingredients."+name)
	}
}
