package favorites

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"recipebox/export"
	"recipebox/logging"
	"recipebox/models"
	"recipebox/utils"
)

// Store is the part of Repository the HTTP layer uses.
type Store interface {
	Add(ctx context.Context, userID string, recipeID primitive.ObjectID) (models.Favorite, bool, error)
	Remove(ctx context.Context, userID string, recipeID primitive.ObjectID) (bool, error)
	IsFavorite(ctx context.Context, userID string, recipeID primitive.ObjectID) (bool, error)
	CountForRecipe(ctx context.Context, recipeID primitive.ObjectID) (int64, error)
}

type Viewer interface {
	Build(ctx context.Context, userID string) ([]models.Recipe, error)
}

// RecipeLookup confirms a recipe exists before it is favorited.
type RecipeLookup interface {
	FindByID(ctx context.Context, id string) (models.Recipe, error)
}

type Handlers struct {
	store   Store
	view    Viewer
	recipes RecipeLookup
	timeout time.Duration
}

func NewHandlers(store Store, view Viewer, recipes RecipeLookup, timeout time.Duration) *Handlers {
	return &Handlers{store: store, view: view, recipes: recipes, timeout: timeout}
}

// requestIDs pulls the caller and the :recipeId param, writing the error response itself.
func requestIDs(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (string, primitive.ObjectID, bool) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", primitive.NilObjectID, false
	}
	recipeID, err := utils.ParseObjectID(ps.ByName("recipeId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid recipe ID")
		return "", primitive.NilObjectID, false
	}
	return userID, recipeID, true
}

// AddFavorite handles POST /api/favorites/:recipeId
func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, recipeID, ok := requestIDs(w, r, ps)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.recipes.FindByID(ctx, recipeID.Hex()); err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to fetch recipe")
		return
	}

	fav, created, err := h.store.Add(ctx, userID, recipeID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to add favorite")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondWithJSON(w, status, fav)
}

// RemoveFavorite handles DELETE /api/favorites/:recipeId
func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, recipeID, ok := requestIDs(w, r, ps)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	removed, err := h.store.Remove(ctx, userID, recipeID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to remove favorite")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipeId": recipeID.Hex(), "favorite": false, "removed": removed})
}

// FavoriteStatus handles GET /api/favorites/:recipeId
func (h *Handlers) FavoriteStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, recipeID, ok := requestIDs(w, r, ps)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	fav, err := h.store.IsFavorite(ctx, userID, recipeID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to check favorite")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipeId": recipeID.Hex(), "favorite": fav})
}

// ListFavorites handles GET /api/favorites
func (h *Handlers) ListFavorites(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipes, err := h.view.Build(ctx, userID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to list favorites")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipes": recipes, "count": len(recipes)})
}

// ExportFavorites handles GET /api/export/favorites.pdf
func (h *Handlers) ExportFavorites(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipes, err := h.view.Build(ctx, userID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to list favorites")
		return
	}

	var buf bytes.Buffer
	if err := export.FavoritesPDF(&buf, userID, recipes, time.Now()); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("favorites pdf failed")
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate PDF")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=favorites.pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// FavoriteCount handles GET /api/recipes/count/:recipeId
func (h *Handlers) FavoriteCount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	recipeID, err := utils.ParseObjectID(ps.ByName("recipeId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid recipe ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	n, err := h.store.CountForRecipe(ctx, recipeID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to count favorites")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipeId": recipeID.Hex(), "count": n})
}
