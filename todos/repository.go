package todos

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
	"recipebox/models"
)

var ErrNoUser = errors.New("todos: user id is required")

// Repository reads and writes a user's to-do items. Every query is scoped to
// the owner, so one user can never touch another's items.
type Repository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewRepository(store *db.Store) *Repository {
	return &Repository{coll: store.Todos, now: time.Now}
}

// List returns the user's items oldest first.
func (r *Repository) List(ctx context.Context, userID string) ([]models.TodoItem, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("find todos: %w", err))
	}
	defer cursor.Close(ctx)

	items := []models.TodoItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, db.Classify(fmt.Errorf("decode todos: %w", err))
	}
	return items, nil
}

func (r *Repository) Add(ctx context.Context, userID, title, description string) (models.TodoItem, error) {
	if userID == "" {
		return models.TodoItem{}, ErrNoUser
	}
	item := models.TodoItem{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Title:       title,
		Description: description,
		CreatedAt:   r.now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, item); err != nil {
		return models.TodoItem{}, db.Classify(fmt.Errorf("insert todo: %w", err))
	}
	return item, nil
}

// Delete returns db.ErrNotFound when the user has no such item.
func (r *Repository) Delete(ctx context.Context, userID string, itemID primitive.ObjectID) error {
	if userID == "" {
		return ErrNoUser
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": itemID, "userId": userID})
	if err != nil {
		return db.Classify(fmt.Errorf("delete todo: %w", err))
	}
	if res.DeletedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *Repository) SetCompleted(ctx context.Context, userID string, itemID primitive.ObjectID, completed bool) error {
	if userID == "" {
		return ErrNoUser
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": itemID, "userId": userID},
		bson.M{"$set": bson.M{"completed": completed}},
	)
	if err != nil {
		return db.Classify(fmt.Errorf("update todo: %w", err))
	}
	if res.MatchedCount == 0 {
		return db.ErrNotFound
	}
	return nil
}
