package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	RecipesCollection   = "recipes"
	FavoritesCollection = "favorites"
	TodosCollection     = "todos"
	UsersCollection     = "users"
)

// Store owns the Mongo client and hands out the collections the repositories use.
// It is opened once at process start and closed at shutdown.
type Store struct {
	Client   *mongo.Client
	Database *mongo.Database

	Recipes   *mongo.Collection
	Favorites *mongo.Collection
	Todos     *mongo.Collection
	Users     *mongo.Collection
}

// Connect dials Mongo, pings the primary and returns a ready Store.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		// Schema-less fields decode to bson.M so they render as JSON objects.
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, Classify(fmt.Errorf("failed to connect to MongoDB: %w", err))
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, Classify(fmt.Errorf("failed to ping MongoDB: %w", err))
	}

	return NewStore(client, client.Database(database)), nil
}

// NewStore wraps an already connected database.
func NewStore(client *mongo.Client, database *mongo.Database) *Store {
	return &Store{
		Client:    client,
		Database:  database,
		Recipes:   database.Collection(RecipesCollection),
		Favorites: database.Collection(FavoritesCollection),
		Todos:     database.Collection(TodosCollection),
		Users:     database.Collection(UsersCollection),
	}
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Disconnect(ctx)
}

// Ping reports whether the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return Classify(s.Client.Ping(ctx, readpref.Primary()))
}

// EnsureIndexes creates the indexes the upsert and favorite paths rely on.
// The unique ones turn concurrent duplicate inserts into duplicate-key errors.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	recipeIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "naturalKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_natural_key"),
		},
		{
			Keys:    bson.D{{Key: "healthiness", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("healthiness_id"),
		},
	}
	if _, err := s.Recipes.Indexes().CreateMany(ctx, recipeIdx); err != nil {
		return Classify(fmt.Errorf("recipes indexes: %w", err))
	}

	favoriteIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "recipeId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_user_recipe"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("user_created"),
		},
	}
	if _, err := s.Favorites.Indexes().CreateMany(ctx, favoriteIdx); err != nil {
		return Classify(fmt.Errorf("favorites indexes: %w", err))
	}

	todoIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
		Options: options.Index().SetName("user_created"),
	}
	if _, err := s.Todos.Indexes().CreateOne(ctx, todoIdx); err != nil {
		return Classify(fmt.Errorf("todos indexes: %w", err))
	}

	userIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_username"),
	}
	if _, err := s.Users.Indexes().CreateOne(ctx, userIdx); err != nil {
		return Classify(fmt.Errorf("users indexes: %w", err))
	}
	return nil
}
