package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/bookrec-go/internal/app"
	"github.com/54b3r/bookrec-go/internal/budget"
	"github.com/54b3r/bookrec-go/internal/catalog"
	"github.com/54b3r/bookrec-go/internal/embedder"
	"github.com/54b3r/bookrec-go/internal/ingestion"
	"github.com/54b3r/bookrec-go/internal/logging"
)

// NewIndexCmd constructs the `bookrec index` command, which embeds every
// catalog book with a tagged description and rebuilds the vector index.
func NewIndexCmd() *cobra.Command {
	var catalogPath string
	var batchSize int
	var maxInputTokens int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index from the catalog CSV",
		Long: `Embed the tagged description of every catalog book and rebuild the
vector index. Any existing index content is replaced.

Environment variables:
  CATALOG_PATH         Catalog CSV (default: books_cleaned.csv)
  VECTOR_BACKEND       sqlite or qdrant (default: sqlite)
  VECTOR_DB_PATH       SQLite index file (default: book_vector_db.sqlite)
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: books)
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  bookrec index
  bookrec index --catalog ./data/books_cleaned.csv
  bookrec index --max-input-tokens 512
  VECTOR_BACKEND=qdrant bookrec index --batch-size 128`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			opts := app.OptionsFromEnv()
			if cmd.Flags().Changed("catalog") {
				opts.CatalogPath = catalogPath
			}

			if err := embedder.ValidateForIndex(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			books, err := catalog.LoadFile(opts.CatalogPath)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			log.Info("catalog loaded", slog.String("path", opts.CatalogPath), slog.Int("books", books.Len()))

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

			store, err := app.CreateStore(ctx, opts)
			if err != nil {
				return fmt.Errorf("index: failed to open %s index: %w", opts.VectorBackend, err)
			}
			defer store.Close()

			pipeline, err := ingestion.NewPipeline(emb, store, &ingestion.Config{
				BatchSize:      batchSize,
				MaxInputTokens: maxInputTokens,
			})
			if err != nil {
				return fmt.Errorf("index: failed to create pipeline: %w", err)
			}

			stats, err := pipeline.Build(ctx, books, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("index: pipeline failed: %w", err)
			}

			log.Info("index complete",
				slog.String("backend", opts.VectorBackend),
				slog.Int("rows", stats.Rows),
				slog.Int("documents", stats.Documents),
				slog.Int("skipped", stats.Skipped),
				slog.Int("truncated", stats.Truncated),
				slog.Duration("duration", stats.Duration),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d books (%d skipped without a description)\n",
				stats.Documents, stats.Rows, stats.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", app.DefaultCatalogPath, "Catalog CSV file (env: CATALOG_PATH)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", ingestion.DefaultBatchSize, "Descriptions embedded per provider call")
	cmd.Flags().IntVar(&maxInputTokens, "max-input-tokens", budget.DefaultMaxInputTokens, "Estimated token cap per embedded description (negative disables)")

	return cmd
}
