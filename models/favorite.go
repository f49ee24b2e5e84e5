package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Favorite is one user's bookmark of one recipe.
// Exactly one document per (userId, recipeId).
type Favorite struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"userId"`
	RecipeID  primitive.ObjectID `json:"recipeId" bson:"recipeId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}
