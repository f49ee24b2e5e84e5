// Package favorites keeps each user's set of bookmarked recipes and joins it
// with the catalog to produce the user's favorites view.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recipebox/db"
	"recipebox/metrics"
	"recipebox/models"
	"recipebox/rdx"
)

// ErrNoUser guards the repository against a missing identity, which the
// auth middleware should already have rejected.
var ErrNoUser = errors.New("favorites: empty user id")

// creationOrder lists a user's favorites oldest first. _id breaks ties
// between favorites created in the same millisecond.
var creationOrder = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}

type Repository struct {
	coll    *mongo.Collection
	counter *rdx.Counter
	now     func() time.Time
	newID   func() primitive.ObjectID
}

// NewRepository binds the repository to the store's favorites collection.
// counter may be nil.
func NewRepository(store *db.Store, counter *rdx.Counter) *Repository {
	return &Repository{
		coll:    store.Favorites,
		counter: counter,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   primitive.NewObjectID,
	}
}

// Add records that userID favorited recipeID and returns the stored
// favorite. created is false when the favorite already existed, in which
// case the existing document is returned unchanged.
func (r *Repository) Add(ctx context.Context, userID string, recipeID primitive.ObjectID) (models.Favorite, bool, error) {
	if userID == "" {
		return models.Favorite{}, false, ErrNoUser
	}
	start := time.Now()

	// The new _id rides in $setOnInsert, so seeing it in the returned
	// document means this call inserted it.
	newID := r.newID()
	filter := bson.M{"userId": userID, "recipeId": recipeID}
	update := bson.M{"$setOnInsert": bson.M{"_id": newID, "createdAt": r.now()}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var fav models.Favorite
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&fav)
	if db.IsDuplicateKeyError(err) {
		// Lost an insert race on (userId, recipeId); the other request created it.
		err = r.coll.FindOne(ctx, filter).Decode(&fav)
	}
	if err != nil {
		err = db.Classify(fmt.Errorf("add favorite: %w", err))
		metrics.RecordStoreCall("favorite_add", time.Since(start), err)
		return models.Favorite{}, false, err
	}
	metrics.RecordStoreCall("favorite_add", time.Since(start), nil)

	created := fav.ID == newID
	if created {
		metrics.RecordFavoriteChange("add")
		r.counter.Incr(ctx, recipeID.Hex())
	}
	return fav, created, nil
}

// ListRecipeIDs returns the recipes userID favorited, in the order they were favorited.
func (r *Repository) ListRecipeIDs(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	start := time.Now()
	ids, err := r.listRecipeIDs(ctx, userID)
	if err != nil {
		err = db.Classify(fmt.Errorf("list favorites: %w", err))
	}
	metrics.RecordStoreCall("favorite_list", time.Since(start), err)
	return ids, err
}

func (r *Repository) listRecipeIDs(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetSort(creationOrder).
		SetProjection(bson.M{"recipeId": 1})

	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := []primitive.ObjectID{}
	for cursor.Next(ctx) {
		var row models.Favorite
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.RecipeID)
	}
	return ids, cursor.Err()
}

// Remove deletes the favorite and reports whether one existed.
func (r *Repository) Remove(ctx context.Context, userID string, recipeID primitive.ObjectID) (bool, error) {
	if userID == "" {
		return false, ErrNoUser
	}
	start := time.Now()
	res, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID, "recipeId": recipeID})
	if err != nil {
		err = db.Classify(fmt.Errorf("remove favorite: %w", err))
		metrics.RecordStoreCall("favorite_remove", time.Since(start), err)
		return false, err
	}
	metrics.RecordStoreCall("favorite_remove", time.Since(start), nil)

	removed := res.DeletedCount > 0
	if removed {
		metrics.RecordFavoriteChange("remove")
		r.counter.Decr(ctx, recipeID.Hex())
	}
	return removed, nil
}

// IsFavorite reports whether userID has favorited recipeID.
func (r *Repository) IsFavorite(ctx context.Context, userID string, recipeID primitive.ObjectID) (bool, error) {
	if userID == "" {
		return false, ErrNoUser
	}
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"userId": userID, "recipeId": recipeID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, db.Classify(fmt.Errorf("favorite lookup: %w", err))
	}
	return n > 0, nil
}

// CountForRecipe returns how many users favorited recipeID, from the Redis
// counter when it is warm and from the collection otherwise.
func (r *Repository) CountForRecipe(ctx context.Context, recipeID primitive.ObjectID) (int64, error) {
	if n, ok := r.counter.Get(ctx, recipeID.Hex()); ok {
		return n, nil
	}
	start := time.Now()
	n, err := r.coll.CountDocuments(ctx, bson.M{"recipeId": recipeID})
	if err != nil {
		err = db.Classify(fmt.Errorf("count favorites: %w", err))
		metrics.RecordStoreCall("favorite_count", time.Since(start), err)
		return 0, err
	}
	metrics.RecordStoreCall("favorite_count", time.Since(start), nil)
	r.counter.Seed(ctx, recipeID.Hex(), n)
	return n, nil
}
