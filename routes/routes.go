package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"recipebox/auth"
	"recipebox/favorites"
	"recipebox/logging"
	"recipebox/metrics"
	"recipebox/middleware"
	"recipebox/ratelim"
	"recipebox/recipes"
	"recipebox/todos"
	"recipebox/utils"
)

// Pinger reports store health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Recipes   *recipes.Handlers
	Favorites *favorites.Handlers
	Todos     *todos.Handlers
	Auth      *auth.Handlers
	Tokens    *middleware.Tokens
	Limiter   *ratelim.RateLimiter
	Store     Pinger
}

// NewRouter registers every route. Each handler is wrapped in
// middleware.Observe so it is logged and counted under its pattern.
func NewRouter(d Deps) *httprouter.Router {
	router := httprouter.New()
	handle := func(method, path string, h httprouter.Handle) {
		router.Handle(method, path, middleware.Observe(path, h))
	}

	router.GET("/health", healthHandler(d.Store))
	router.Handler(http.MethodGet, "/metrics", metrics.Handler())

	AddAuthRoutes(handle, d)
	AddRecipeRoutes(handle, d)
	AddFavoriteRoutes(handle, d)
	AddTodoRoutes(handle, d)

	return router
}

type handleFunc func(method, path string, h httprouter.Handle)

func AddAuthRoutes(handle handleFunc, d Deps) {
	handle(http.MethodPost, "/api/auth/register", d.Limiter.Limit(d.Auth.Register))
	handle(http.MethodPost, "/api/auth/login", d.Limiter.Limit(d.Auth.Login))
}

func AddRecipeRoutes(handle handleFunc, d Deps) {
	handle(http.MethodPost, "/api/recipes/by-title", d.Recipes.SearchByTitle)
	handle(http.MethodPost, "/api/recipes/by-ingredient", d.Recipes.SearchByIngredient)
	handle(http.MethodGet, "/api/recipes/show/:recipeId", d.Recipes.GetRecipe)
	handle(http.MethodGet, "/api/recipes/qr/:recipeId", d.Recipes.RecipeQR)
	handle(http.MethodGet, "/api/recipes/count/:recipeId", d.Favorites.FavoriteCount)
	handle(http.MethodPost, "/api/catalog/upsert", d.Limiter.Limit(d.Tokens.Authenticate(d.Recipes.UpsertCatalog)))
}

func AddFavoriteRoutes(handle handleFunc, d Deps) {
	handle(http.MethodGet, "/api/favorites", d.Tokens.Authenticate(d.Favorites.ListFavorites))
	handle(http.MethodGet, "/api/favorites/:recipeId", d.Tokens.Authenticate(d.Favorites.FavoriteStatus))
	handle(http.MethodPost, "/api/favorites/:recipeId", d.Limiter.Limit(d.Tokens.Authenticate(d.Favorites.AddFavorite)))
	handle(http.MethodDelete, "/api/favorites/:recipeId", d.Limiter.Limit(d.Tokens.Authenticate(d.Favorites.RemoveFavorite)))
	handle(http.MethodGet, "/api/export/favorites.pdf", d.Limiter.Limit(d.Tokens.Authenticate(d.Favorites.ExportFavorites)))
}

func AddTodoRoutes(handle handleFunc, d Deps) {
	handle(http.MethodGet, "/api/todo", d.Tokens.Authenticate(d.Todos.GetTodos))
	handle(http.MethodPost, "/api/todo", d.Limiter.Limit(d.Tokens.Authenticate(d.Todos.AddTodo)))
	handle(http.MethodDelete, "/api/todo/:itemId", d.Limiter.Limit(d.Tokens.Authenticate(d.Todos.DeleteTodo)))
	handle(http.MethodPut, "/api/todo/:itemId/completed/:value", d.Limiter.Limit(d.Tokens.Authenticate(d.Todos.SetCompleted)))
}

func healthHandler(store Pinger) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
			utils.RespondWithJSON(w, http.StatusServiceUnavailable, utils.M{"status": "unavailable"})
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
	}
}

// SecurityHeaders applies the response headers every API reply carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
