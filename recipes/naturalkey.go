package recipes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"

	"recipebox/models"
)

// NaturalKey hashes the identity tuple of a raw recipe:
// (title, instructions, healthiness, ingredients, url).
//
// The tuple is encoded as JSON with map keys sorted, so two records carrying
// equal ingredient maps in a different key order hash the same. The stored
// naturalKey field carries a unique index.
func NaturalKey(rec models.RawRecipe) (string, error) {
	canonical, err := json.Marshal([]any{
		rec.Title,
		rec.Instructions,
		rec.Healthiness,
		rec.Ingredients,
		rec.URL,
	})
	if err != nil {
		return "", fmt.Errorf("encode natural key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
