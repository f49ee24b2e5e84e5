package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"recipebox/auth"
	"recipebox/db"
	"recipebox/favorites"
	"recipebox/logging"
	"recipebox/middleware"
	"recipebox/ratelim"
	"recipebox/rdx"
	"recipebox/recipes"
	"recipebox/routes"
	"recipebox/todos"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Run the HTTP API",
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	store, err := db.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logging.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}()
	logging.Info().Str("db", cfg.Mongo.Database).Msg("connected to MongoDB")

	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb, err := rdx.Connect(ctx, cfg.Redis)
	if err != nil {
		// Redis only speeds things up; run without it.
		logging.Warn().Err(err).Msg("redis unavailable; caching disabled")
	}
	if rdb != nil {
		defer rdb.Close()
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
	}

	timeout := cfg.Mongo.QueryTimeout
	catalog := recipes.NewRepository(store, rdx.NewRecipeCache(rdb, cfg.Redis.CacheTTL))
	favs := favorites.NewRepository(store, rdx.NewCounter(rdb, cfg.Redis.CacheTTL))
	tokens := middleware.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	limiter := ratelim.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := routes.NewRouter(routes.Deps{
		Recipes:   recipes.NewHandlers(catalog, cfg.Catalog.File, timeout),
		Favorites: favorites.NewHandlers(favs, favorites.NewViewBuilder(favs, catalog), catalog, timeout),
		Todos:     todos.NewHandlers(todos.NewRepository(store), timeout),
		Auth:      auth.NewHandlers(auth.NewUsers(store), tokens, timeout),
		Tokens:    tokens,
		Limiter:   limiter,
		Store:     store,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	server := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           routes.SecurityHeaders(corsHandler),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info().Str("addr", cfg.Server.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx.Done())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info().Msg("server stopped cleanly")
	return nil
}
