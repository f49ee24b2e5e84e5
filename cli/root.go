// Package cli holds the recipebox commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"recipebox/config"
	"recipebox/logging"
)

// Set at build time with -ldflags "-X recipebox/cli.version=...".
var version = "dev"

// cfg is loaded once before any command that needs it runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "recipebox",
	Short:         "Recipe catalog and favorites service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig is the PersistentPreRunE of commands that talk to the stores.
func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c
	logging.Init(logging.Config{Level: c.Logging.Level, Format: c.Logging.Format})
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
