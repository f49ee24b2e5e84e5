package recipes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"recipebox/export"
	"recipebox/logging"
	"recipebox/models"
	"recipebox/utils"
)

const (
	maxCatalogBytes = 64 << 20
	ingestTimeout   = 5 * time.Minute
	// replySlack is the time left for writing the response once ingest returns.
	replySlack = 30 * time.Second
)

// Catalog is the part of Repository the HTTP layer uses.
type Catalog interface {
	Ingest(ctx context.Context, records []models.RawRecipe) (IngestResult, error)
	FindByTitleSubstring(ctx context.Context, fragment string) ([]models.Recipe, error)
	FindByIngredient(ctx context.Context, name string) ([]models.Recipe, error)
	FindByID(ctx context.Context, id string) (models.Recipe, error)
}

type Handlers struct {
	catalog     Catalog
	catalogFile string
	timeout     time.Duration
}

// NewHandlers serves catalog routes. catalogFile is ingested when the upsert
// request has no body.
func NewHandlers(catalog Catalog, catalogFile string, timeout time.Duration) *Handlers {
	return &Handlers{catalog: catalog, catalogFile: catalogFile, timeout: timeout}
}

type titleSearchRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type ingredientSearchRequest struct {
	Ingredient string `json:"ingredient" validate:"max=200"`
}

// SearchByTitle handles POST /api/recipes/by-title
func (h *Handlers) SearchByTitle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req titleSearchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipes, err := h.catalog.FindByTitleSubstring(ctx, req.Title)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to search recipes")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipes": recipes, "count": len(recipes)})
}

// SearchByIngredient handles POST /api/recipes/by-ingredient
func (h *Handlers) SearchByIngredient(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req ingredientSearchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipes, err := h.catalog.FindByIngredient(ctx, req.Ingredient)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to search recipes")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"recipes": recipes, "count": len(recipes)})
}

// GetRecipe handles GET /api/recipes/show/:recipeId
func (h *Handlers) GetRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipe, err := h.catalog.FindByID(ctx, ps.ByName("recipeId"))
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to fetch recipe")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, recipe)
}

// UpsertCatalog handles POST /api/catalog/upsert. The body is a JSON array of
// raw recipes; an empty body re-ingests the bundled dataset file.
func (h *Handlers) UpsertCatalog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	extendDeadlines(w, r)

	var (
		records []models.RawRecipe
		err     error
	)
	if r.ContentLength == 0 {
		records, err = LoadDataset(h.catalogFile)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("file", h.catalogFile).Msg("catalog dataset unreadable")
			utils.RespondWithError(w, http.StatusInternalServerError, "Catalog dataset unavailable")
			return
		}
	} else {
		records, err = DecodeDataset(io.LimitReader(r.Body, maxCatalogBytes))
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), ingestTimeout)
	defer cancel()

	res, err := h.catalog.Ingest(ctx, records)
	if errors.Is(err, ErrInvalidRecord) {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to ingest catalog")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}

// extendDeadlines lifts the server's read and write timeouts for this
// connection so a large catalog upload and its ingest can finish.
func extendDeadlines(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	now := time.Now()
	if err := rc.SetReadDeadline(now.Add(ingestTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("read deadline not extended")
	}
	if err := rc.SetWriteDeadline(now.Add(ingestTimeout + replySlack)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("write deadline not extended")
	}
}

// RecipeQR handles GET /api/recipes/qr/:recipeId and returns a PNG linking to the recipe source.
func (h *Handlers) RecipeQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	recipe, err := h.catalog.FindByID(ctx, ps.ByName("recipeId"))
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to fetch recipe")
		return
	}

	size := export.DefaultQRSize
	if s, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil && s >= 64 && s <= 1024 {
		size = s
	}

	png, err := export.RecipeQR(recipe.URL, size)
	if errors.Is(err, export.ErrNoURL) {
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
