package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"recipebox/db"
	"recipebox/logging"
	"recipebox/models"
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Users stores accounts with bcrypt password hashes.
type Users struct {
	coll *mongo.Collection
	cost int
	now  func() time.Time
}

func NewUsers(store *db.Store) *Users {
	return &Users{coll: store.Users, cost: bcrypt.DefaultCost, now: time.Now}
}

// Create registers a new account. The unique username index turns a
// concurrent duplicate into ErrUserExists.
func (u *Users) Create(ctx context.Context, username, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    u.now().UTC(),
	}
	res, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if db.IsDuplicateKeyError(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, db.Classify(fmt.Errorf("insert user: %w", err))
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}
	return user, nil
}

// Verify checks the password and stamps the login time.
func (u *Users) Verify(ctx context.Context, username, password string) (models.User, error) {
	var user models.User
	err := u.coll.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, db.Classify(fmt.Errorf("find user: %w", err))
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	user.LastLogin = u.now().UTC()
	if _, err := u.coll.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{"lastLogin": user.LastLogin}}); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("username", username).Msg("failed to record login time")
	}
	return user, nil
}
