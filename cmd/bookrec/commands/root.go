// Package commands defines all Cobra CLI commands for the bookrec binary.
package commands

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/bookrec-go/internal/audit"
	"github.com/54b3r/bookrec-go/internal/config"
	"github.com/54b3r/bookrec-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bookrec",
		Short: "bookrec: semantic book recommendations from a catalog CSV",
		Long: `bookrec recommends books for a free-text query.

Queries are answered by embedding similarity against a vector index built
from the catalog with 'bookrec index'. Without an index, or when the vector
path fails, a plain substring search over the catalog answers instead.

Settings come from environment variables, a .env file in the working
directory, or a YAML config file (~/.bookrec/config.yaml).
See 'bookrec --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env never overrides variables already set in the environment.
			dotenvErr := godotenv.Load()

			log := logging.New()
			if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
				log.Warn("config: failed to read .env", slog.Any("error", dotenvErr))
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_LEVEL and LOG_FORMAT may have come from the files just loaded.
			log = logging.New()
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.bookrec/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIndexCmd(),
		NewSearchCmd(),
		NewVersionCmd(),
	)

	return root
}
