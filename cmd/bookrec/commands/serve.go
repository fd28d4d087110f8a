package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/bookrec-go/internal/app"
	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/server"
	"github.com/54b3r/bookrec-go/internal/version"
)

// NewServeCmd constructs the `bookrec serve` command, which loads the catalog
// and vector index and starts the HTTP server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bookrec HTTP server",
		Long: `Start the bookrec HTTP server.

The server exposes POST /search, GET /suggestions, and GET /api/stats, plus
health, readiness, and Prometheus endpoints. When UI_DIR points at a
directory, its files are served at /.

If no vector index has been built, searches use the catalog text fallback.

Examples:
  bookrec serve
  bookrec serve --port 8080
  VECTOR_BACKEND=qdrant bookrec serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			// Env defaults are read here, after .env and YAML have been applied.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("BOOKREC_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("BOOKREC_PORT", port)
			}

			log.Info("serve starting", slog.String("version", version.String()))

			opts := app.OptionsFromEnv()
			opts.Registerer = prometheus.DefaultRegisterer

			a, err := app.Open(ctx, log, opts)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("serve: close vector index", slog.Any("error", err))
				}
			}()

			srv, err := server.New(a.Search, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   a.Pingers,
				RateLimit: getEnvFloat("RATE_LIMIT", 0),
				RateBurst: getEnvInt("RATE_BURST", 0),
				UIDir:     os.Getenv("UI_DIR"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve ready",
				slog.Int("books", a.Catalog.Len()),
				slog.Bool("vector_index", a.Search.VectorEnabled()),
				slog.Int("indexed_documents", a.IndexCount),
			)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: BOOKREC_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 5002, "TCP port to listen on (env: BOOKREC_PORT)")

	return cmd
}
