package todos

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"recipebox/models"
	"recipebox/utils"
)

type Store interface {
	List(ctx context.Context, userID string) ([]models.TodoItem, error)
	Add(ctx context.Context, userID, title, description string) (models.TodoItem, error)
	Delete(ctx context.Context, userID string, itemID primitive.ObjectID) error
	SetCompleted(ctx context.Context, userID string, itemID primitive.ObjectID, completed bool) error
}

type Handlers struct {
	store   Store
	timeout time.Duration
}

func NewHandlers(store Store, timeout time.Duration) *Handlers {
	return &Handlers{store: store, timeout: timeout}
}

type newItem struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// GetTodos handles GET /api/todo
func (h *Handlers) GetTodos(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.store.List(ctx, userID)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to fetch todo items")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"items": items, "count": len(items)})
}

// AddTodo handles POST /api/todo
func (h *Handlers) AddTodo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req newItem
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	item, err := h.store.Add(ctx, userID, req.Title, req.Description)
	if err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to add todo item")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

// DeleteTodo handles DELETE /api/todo/:itemId
func (h *Handlers) DeleteTodo(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	itemID, err := utils.ParseObjectID(ps.ByName("itemId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Delete(ctx, userID, itemID); err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to delete todo item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCompleted handles PUT /api/todo/:itemId/completed/:value
func (h *Handlers) SetCompleted(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	itemID, err := utils.ParseObjectID(ps.ByName("itemId"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}
	completed, err := strconv.ParseBool(ps.ByName("value"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "completed must be true or false")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.SetCompleted(ctx, userID, itemID, completed); err != nil {
		utils.RespondWithStoreError(w, r, err, "Failed to update todo item")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"id": itemID.Hex(), "completed": completed})
}
