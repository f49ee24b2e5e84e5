package favorites

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"recipebox/logging"
	"recipebox/models"
)

type RecipeIDLister interface {
	ListRecipeIDs(ctx context.Context, userID string) ([]primitive.ObjectID, error)
}

type RecipeBatchFetcher interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Recipe, error)
}

// ViewBuilder joins a user's favorite ids with the catalog.
type ViewBuilder struct {
	favorites RecipeIDLister
	recipes   RecipeBatchFetcher
}

func NewViewBuilder(favorites RecipeIDLister, recipes RecipeBatchFetcher) *ViewBuilder {
	return &ViewBuilder{favorites: favorites, recipes: recipes}
}

// Build returns the full recipes userID favorited, in favorite order.
// Favorites whose recipe no longer exists are left out.
func (b *ViewBuilder) Build(ctx context.Context, userID string) ([]models.Recipe, error) {
	ids, err := b.favorites.ListRecipeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Recipe{}, nil
	}

	found, err := b.recipes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch favorite recipes: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.Recipe, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}

	view := make([]models.Recipe, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			view = append(view, r)
		}
	}

	if orphans := len(ids) - len(view); orphans > 0 {
		logging.Ctx(ctx).Debug().Str("user_id", userID).Int("orphans", orphans).Msg("favorites point at missing recipes")
	}
	return view, nil
}
