package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"recipebox/db"
	"recipebox/logging"
	"recipebox/rdx"
	"recipebox/recipes"
)

var ingestFile string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a recipe dataset into the catalog",
	Long: `Reads a JSON array of recipes and upserts each one into the catalog.
Running it again with the same file changes nothing. Without --file the
configured catalog file is used.`,
	PersistentPreRunE: loadConfig,
	RunE:              runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "dataset path (defaults to catalog.file)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := ingestFile
	if path == "" {
		path = cfg.Catalog.File
	}
	records, err := recipes.LoadDataset(path)
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	store, err := db.Connect(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}

	// Ingest purges the shared recipe cache, so connect to it when configured.
	rdb, err := rdx.Connect(ctx, cfg.Redis)
	if err != nil {
		logging.Warn().Err(err).Msg("redis unavailable; cached recipes will expire on their own")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	repo := recipes.NewRepository(store, rdx.NewRecipeCache(rdb, cfg.Redis.CacheTTL))
	res, err := repo.Ingest(ctx, records)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", path, err)
	}

	cmd.Printf("data uploaded: %d (processed %d, inserted %d, updated %d)\n",
		res.Total, res.Processed, res.Inserted, res.Updated)
	return nil
}
