// Package recipes owns the recipe catalog: idempotent ingestion keyed on the
// recipe's natural key, and the three read shapes the application serves
// (title substring, ingredient presence, lookup by id).
package recipes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipebox/db"
	"recipebox/logging"
	"recipebox/metrics"
	"recipebox/models"
	"recipebox/rdx"
	"recipebox/utils"
)

// ErrInvalidRecord is returned by Ingest before anything is written when a
// record fails validation.
var ErrInvalidRecord = errors.New("invalid recipe record")

// healthiestFirst is the sort of every multi-recipe query. _id breaks ties
// so equal scores come back in insertion order.
var healthiestFirst = bson.D{{Key: "healthiness", Value: 1}, {Key: "_id", Value: 1}}

// IngestResult reports one ingestion pass. Total is the collection size afterwards.
type IngestResult struct {
	Processed int   `json:"processed"`
	Inserted  int   `json:"inserted"`
	Updated   int   `json:"updated"`
	Total     int64 `json:"total"`
}

type Repository struct {
	coll  *mongo.Collection
	cache *rdx.RecipeCache
	now   func() time.Time
}

// NewRepository binds the repository to the store's recipes collection.
// cache may be nil.
func NewRepository(store *db.Store, cache *rdx.RecipeCache) *Repository {
	return &Repository{
		coll:  store.Recipes,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ingest upserts every record by natural key in one pass, one round trip per
// record. Re-ingesting a record overwrites the stored fields and never
// creates a second document. All records are validated before the first write.
func (r *Repository) Ingest(ctx context.Context, records []models.RawRecipe) (IngestResult, error) {
	start := time.Now()
	var res IngestResult

	keys := make([]string, len(records))
	for i := range records {
		if err := utils.ValidateStruct(&records[i]); err != nil {
			return res, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		key, err := NaturalKey(records[i])
		if err != nil {
			return res, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		// Catches values Mongo cannot store, such as NUL bytes in keys,
		// before any record is written.
		if _, err := bson.Marshal(recipeUpdate(&records[i], time.Time{})); err != nil {
			return res, fmt.Errorf("%w: record %d: %v", ErrInvalidRecord, i, err)
		}
		keys[i] = key
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return res, db.Classify(fmt.Errorf("ingest stopped at record %d: %w", i, err))
		}
		inserted, err := r.upsert(ctx, &records[i], keys[i])
		if err != nil {
			metrics.RecordStoreCall("ingest", time.Since(start), err)
			return res, fmt.Errorf("upsert record %d: %w", i, err)
		}
		res.Processed++
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	total, err := r.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Total = total

	if n, err := r.cache.Purge(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("recipe cache purge failed")
	} else if n > 0 {
		logging.Ctx(ctx).Debug().Int("purged", n).Msg("recipe cache purged")
	}

	metrics.RecordIngest(res.Inserted, res.Updated)
	metrics.RecordStoreCall("ingest", time.Since(start), nil)
	logging.Ctx(ctx).Info().
		Int("processed", res.Processed).
		Int("inserted", res.Inserted).
		Int("updated", res.Updated).
		Int64("total", res.Total).
		Dur("took", time.Since(start)).
		Msg("catalog ingested")
	return res, nil
}

// recipeUpdate is the upsert document for one record. Optional fields the
// record lacks are unset so the stored document mirrors the latest dataset.
func recipeUpdate(rec *models.RawRecipe, now time.Time) bson.M {
	set := bson.M{
		"title":        rec.Title,
		"instructions": rec.Instructions,
		"healthiness":  rec.Healthiness,
		"ingredients":  rec.Ingredients,
		"url":          rec.URL,
		"updatedAt":    now,
	}
	unset := bson.M{}
	if rec.FSALights != nil {
		set["fsalights"] = rec.FSALights
	} else {
		unset["fsalights"] = ""
	}
	if rec.NutrValues != nil {
		set["nutrvalues"] = rec.NutrValues
	} else {
		unset["nutrvalues"] = ""
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// upsert writes one record and reports whether a new document was created.
func (r *Repository) upsert(ctx context.Context, rec *models.RawRecipe, key string) (bool, error) {
	update := recipeUpdate(rec, r.now())
	filter := bson.M{"naturalKey": key}
	opts := options.Update().SetUpsert(true)

	res, err := r.coll.UpdateOne(ctx, filter, update, opts)
	if db.IsDuplicateKeyError(err) {
		// A concurrent ingest inserted the same key between our match and insert.
		// The retry matches that document and updates it.
		res, err = r.coll.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return false, db.Classify(err)
	}
	return res.UpsertedCount > 0, nil
}

// FindByTitleSubstring returns recipes whose title contains fragment
// literally (case-sensitive), healthiest first. An empty fragment matches all.
func (r *Repository) FindByTitleSubstring(ctx context.Context, fragment string) ([]models.Recipe, error) {
	return r.find(ctx, "find_by_title", titleFilter(fragment))
}

// titleFilter matches fragment literally. Mongo rejects regexes with an
// embedded NUL, so those fragments use $indexOfCP instead.
func titleFilter(fragment string) bson.M {
	switch {
	case fragment == "":
		return bson.M{}
	case strings.ContainsRune(fragment, 0):
		return bson.M{"$expr": bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{bson.M{"$type": "$title"}, "string"}},
			bson.M{"$gte": bson.A{
				bson.M{"$indexOfCP": bson.A{"$title", bson.M{"$literal": fragment}}},
				0,
			}},
		}}}
	default:
		return bson.M{"title": bson.M{"$regex": regexp.QuoteMeta(fragment)}}
	}
}

// FindByIngredient returns recipes whose ingredients map has the key name,
// whatever its value, healthiest first. An empty name matches nothing, and
// neither does a name with a NUL byte, which no stored key can contain.
func (r *Repository) FindByIngredient(ctx context.Context, name string) ([]models.Recipe, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return []models.Recipe{}, nil
	}
	return r.find(ctx, "find_by_ingredient", ingredientFilter(name))
}

// ingredientFilter matches the key name inside ingredients. Dotted paths
// would descend into nested documents and $-prefixed paths are operators,
// so such names are compared literally with $getField.
func ingredientFilter(name string) bson.M {
	if !strings.Contains(name, ".") && !strings.HasPrefix(name, "$") {
		return bson.M{"ingredients." + name: bson.M{"$exists": true}}
	}
	return bson.M{"$expr": bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$type": "$ingredients"}, "object"}},
		bson.M{"$ne": bson.A{
			bson.M{"$type": bson.M{"$getField": bson.M{
				"field": bson.M{"$literal": name},
				"input": "$ingredients",
			}}},
			"missing",
		}},
	}}}
}

// FindByID returns db.ErrNotFound when no recipe has the id, including when
// id is not a valid ObjectID.
func (r *Repository) FindByID(ctx context.Context, id string) (models.Recipe, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("recipe %q: %w", id, db.ErrNotFound)
	}

	// The generation is read before the store so a concurrent ingest
	// invalidates whatever this lookup caches.
	gen, cached := r.cache.Generation(ctx)
	if cached {
		recipe, hit := r.cache.Get(ctx, gen, oid.Hex())
		metrics.RecordCacheLookup(hit)
		if hit {
			return recipe, nil
		}
	}

	start := time.Now()
	var recipe models.Recipe
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&recipe)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = fmt.Errorf("recipe %s: %w", oid.Hex(), db.ErrNotFound)
	} else if err != nil {
		err = db.Classify(fmt.Errorf("find recipe %s: %w", oid.Hex(), err))
	}
	metrics.RecordStoreCall("find_by_id", time.Since(start), err)
	if err != nil {
		return models.Recipe{}, err
	}

	if cached {
		r.cache.Set(ctx, gen, recipe)
	}
	return recipe, nil
}

// FindByIDs fetches a batch in one query. Result order is unspecified and
// ids with no recipe are skipped.
func (r *Repository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Recipe, error) {
	if len(ids) == 0 {
		return []models.Recipe{}, nil
	}
	return r.find(ctx, "find_by_ids", bson.M{"_id": bson.M{"$in": ids}})
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		err = db.Classify(fmt.Errorf("count recipes: %w", err))
	}
	metrics.RecordStoreCall("count", time.Since(start), err)
	return n, err
}

func (r *Repository) find(ctx context.Context, op string, filter bson.M) ([]models.Recipe, error) {
	start := time.Now()
	recipes, err := r.findAll(ctx, filter)
	if err != nil {
		err = db.Classify(fmt.Errorf("%s: %w", op, err))
	}
	metrics.RecordStoreCall(op, time.Since(start), err)
	return recipes, err
}

func (r *Repository) findAll(ctx context.Context, filter bson.M) ([]models.Recipe, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(healthiestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	recipes := []models.Recipe{}
	if err := cursor.All(ctx, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}
