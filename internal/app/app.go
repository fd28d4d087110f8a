// Package app assembles the long-lived serving state: the catalog, the
// optional vector retriever, the search service, and the readiness checks.
// An App is built once by Open and passed explicitly to the HTTP server and
// CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/bookrec-go/internal/catalog"
	"github.com/54b3r/bookrec-go/internal/embedder"
	"github.com/54b3r/bookrec-go/internal/rag"
	"github.com/54b3r/bookrec-go/internal/search"
	"github.com/54b3r/bookrec-go/internal/server"
)

// Vector backends selectable with VECTOR_BACKEND.
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
	BackendNone   = "none"
)

// DefaultCatalogPath is the catalog CSV used when CATALOG_PATH is unset.
const DefaultCatalogPath = "books_cleaned.csv"

// Options configures Open.
type Options struct {
	// CatalogPath is the catalog CSV file.
	CatalogPath string
	// VectorBackend is one of BackendSQLite, BackendQdrant, BackendNone.
	VectorBackend string
	// VectorDBPath is the index file for BackendSQLite.
	VectorDBPath string
	// Qdrant holds connection settings for BackendQdrant.
	Qdrant rag.QdrantConfig
	// SearchLimit is the default result count.
	SearchLimit int
	// Overfetch multiplies the vector candidates requested when filtering.
	Overfetch int
	// VectorTimeout bounds one vector retrieval. Zero disables the bound.
	VectorTimeout time.Duration
	// Registerer receives the search metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// OptionsFromEnv reads Options from environment variables, applying the
// documented defaults.
func OptionsFromEnv() Options {
	return Options{
		CatalogPath:   getEnvOrDefault("CATALOG_PATH", DefaultCatalogPath),
		VectorBackend: strings.ToLower(getEnvOrDefault("VECTOR_BACKEND", BackendSQLite)),
		VectorDBPath:  getEnvOrDefault("VECTOR_DB_PATH", rag.DefaultSQLitePath),
		Qdrant: rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "books"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			VectorSize: uint64(embedder.DefaultDimensions(embedder.Backend())),
		},
		SearchLimit:   getEnvInt("SEARCH_LIMIT", search.DefaultLimit),
		Overfetch:     getEnvInt("SEARCH_OVERFETCH", 1),
		VectorTimeout: getEnvDuration("SEARCH_VECTOR_TIMEOUT", 0),
	}
}

// App is the assembled serving state. It is read-only after Open returns
// and safe to share between goroutines.
type App struct {
	// Catalog is the loaded book catalog; empty when the CSV was unreadable.
	Catalog *catalog.Store
	// Retriever serves the vector path; nil when no index is available.
	Retriever rag.Retriever
	// Search is the query service wired to Catalog and Retriever.
	Search *search.Service
	// Pingers are the dependencies checked by GET /api/ready.
	Pingers []server.Pinger
	// IndexCount is the number of indexed documents, 0 without an index.
	IndexCount int

	closers []func() error
}

// Open loads the catalog and, unless the backend is "none", opens the vector
// index. A missing or unreachable index, or an embedder that cannot be
// configured, is logged and leaves the App on the text fallback. Only an
// unknown backend name is returned as an error.
func Open(ctx context.Context, log *slog.Logger, opts Options) (*App, error) {
	switch opts.VectorBackend {
	case BackendSQLite, BackendQdrant, BackendNone:
	default:
		return nil, fmt.Errorf("app: unknown vector backend %q, valid values: sqlite, qdrant, none", opts.VectorBackend)
	}

	a := &App{}

	books, err := catalog.LoadFile(opts.CatalogPath)
	if err != nil {
		log.Error("app: catalog unavailable, searches will return no results",
			slog.String("path", opts.CatalogPath),
			slog.String("error", err.Error()),
		)
		books = catalog.Empty()
	} else {
		log.Info("app: catalog loaded",
			slog.String("path", opts.CatalogPath),
			slog.Int("books", books.Len()),
		)
	}
	a.Catalog = books
	a.Pingers = append(a.Pingers, server.NewCatalogPinger(books))

	if opts.VectorBackend != BackendNone {
		a.openVector(ctx, log, opts)
	} else {
		log.Info("app: vector search disabled, using text search only")
	}

	a.Search = search.New(&search.Config{
		Catalog:       a.Catalog,
		Retriever:     a.Retriever,
		DefaultLimit:  opts.SearchLimit,
		Overfetch:     opts.Overfetch,
		VectorTimeout: opts.VectorTimeout,
		Logger:        log,
		Registerer:    opts.Registerer,
	})

	return a, nil
}

// openVector opens the configured index and builds the retriever. Neither a
// missing index nor an unusable embedder is fatal: both leave the retriever
// nil so searches use the text fallback.
func (a *App) openVector(ctx context.Context, log *slog.Logger, opts Options) {
	store, err := OpenStore(ctx, opts)
	if err != nil {
		msg := "app: vector index unavailable, using text search fallback"
		if errors.Is(err, rag.ErrIndexNotFound) {
			msg = "app: no vector index found, using text search fallback (run `bookrec index`)"
		}
		log.Warn(msg,
			slog.String("backend", opts.VectorBackend),
			slog.String("error", err.Error()),
		)
		return
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Warn("app: embedder unavailable, using text search fallback",
			slog.String("provider", embedder.Backend()),
			slog.String("error", err.Error()),
		)
		_ = store.Close()
		return
	}

	retriever, err := rag.NewRetriever(emb, store, opts.SearchLimit)
	if err != nil {
		log.Warn("app: retriever unavailable, using text search fallback",
			slog.String("error", err.Error()),
		)
		_ = store.Close()
		return
	}
	a.closers = append(a.closers, store.Close)
	a.Retriever = retriever

	if n, err := store.Count(ctx); err == nil {
		a.IndexCount = n
	}
	log.Info("app: vector index loaded",
		slog.String("backend", opts.VectorBackend),
		slog.Int("documents", a.IndexCount),
	)

	if q, ok := store.(*rag.QdrantStore); ok {
		a.Pingers = append(a.Pingers, server.NewQdrantPinger(q.Client()))
	}
	if o, ok := emb.(*embedder.OllamaEmbedder); ok {
		a.Pingers = append(a.Pingers, server.NewVectorPinger("ollama", o.Ping))
	}
}

// OpenStore opens an existing vector index for serving. It returns an error
// wrapping rag.ErrIndexNotFound when the index has not been built.
func OpenStore(ctx context.Context, opts Options) (rag.VectorStore, error) {
	switch opts.VectorBackend {
	case BackendSQLite:
		return rag.OpenSQLiteStore(ctx, opts.VectorDBPath)
	case BackendQdrant:
		cfg := opts.Qdrant
		return rag.OpenQdrantStore(ctx, &cfg)
	default:
		return nil, fmt.Errorf("app: unknown vector backend %q, valid values: sqlite, qdrant, none", opts.VectorBackend)
	}
}

// CreateStore opens the vector index for a rebuild, creating it if needed.
func CreateStore(ctx context.Context, opts Options) (rag.VectorStore, error) {
	switch opts.VectorBackend {
	case BackendSQLite:
		return rag.CreateSQLiteStore(opts.VectorDBPath)
	case BackendQdrant:
		cfg := opts.Qdrant
		return rag.NewQdrantStore(ctx, &cfg)
	case BackendNone:
		return nil, fmt.Errorf("app: VECTOR_BACKEND is %q, nothing to build", BackendNone)
	default:
		return nil, fmt.Errorf("app: unknown vector backend %q, valid values: sqlite, qdrant, none", opts.VectorBackend)
	}
}

// Close releases the vector index. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration returns the duration value of the named environment
// variable, or fallback if the variable is unset, empty, or not parseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
