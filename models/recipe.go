package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RawRecipe is one record of the bulk catalog dataset, before it is stored.
type RawRecipe struct {
	Title        string  `json:"title" bson:"title"`
	Instructions any     `json:"instructions" bson:"instructions"`
	FSALights    any     `json:"fsalights,omitempty" bson:"fsalights,omitempty"`
	Healthiness  float64 `json:"healthiness" bson:"healthiness" validate:"finite"`
	Ingredients  bson.M  `json:"ingredients" bson:"ingredients"`
	NutrValues   any     `json:"nutrvalues,omitempty" bson:"nutrvalues,omitempty"`
	URL          string  `json:"url" bson:"url"`
}

// Recipe is a stored catalog document. Ingredients keys vary per recipe.
type Recipe struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Title        string             `json:"title" bson:"title"`
	Instructions any                `json:"instructions" bson:"instructions"`
	FSALights    any                `json:"fsalights,omitempty" bson:"fsalights,omitempty"`
	Healthiness  float64            `json:"healthiness" bson:"healthiness"`
	Ingredients  bson.M             `json:"ingredients" bson:"ingredients"`
	NutrValues   any                `json:"nutrvalues,omitempty" bson:"nutrvalues,omitempty"`
	URL          string             `json:"url" bson:"url"`
	NaturalKey   string             `json:"-" bson:"naturalKey"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}
