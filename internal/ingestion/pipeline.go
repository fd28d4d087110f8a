// Package ingestion builds the vector index from the book catalog. Each
// catalog row with a tagged description becomes one document; the texts are
// embedded in batches and the whole set replaces the previous index in a
// single write. This pipeline is invoked by the `bookrec index` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/bookrec-go/internal/budget"
	"github.com/54b3r/bookrec-go/internal/catalog"
	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/rag"
)

// DefaultBatchSize is the number of texts sent to the embedder per request.
const DefaultBatchSize = 64

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the maximum number of texts per Embed call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int

	// MaxInputTokens caps the estimated size of each text sent to the
	// embedder. Longer descriptions are truncated for embedding only; the
	// stored document keeps the full text. Defaults to
	// budget.DefaultMaxInputTokens if zero; negative disables the cap.
	MaxInputTokens int
}

// Stats summarizes a completed build.
type Stats struct {
	// Rows is the number of catalog rows scanned.
	Rows int
	// Documents is the number of documents written to the index.
	Documents int
	// Skipped is the number of rows left out for lacking a tagged description.
	Skipped int
	// Truncated is the number of texts shortened to fit MaxInputTokens.
	Truncated int
	// Duration is the wall time of the build.
	Duration time.Duration
}

// Pipeline orchestrates the build → embed → replace flow.
type Pipeline struct {
	// embedder converts document texts into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded documents.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxInputTokens == 0 {
		cfg.MaxInputTokens = budget.DefaultMaxInputTokens
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
	}, nil
}

// BuildDocuments turns every catalog row with a non-blank tagged description
// into an index document. The document ID and the book_index metadata value
// are the row position, which is the join key back into the catalog.
func BuildDocuments(books *catalog.Store) []rag.Document {
	docs := make([]rag.Document, 0, books.Len())
	books.Each(func(i int, b catalog.BookRecord) bool {
		if !b.HasTaggedDescription() {
			return true
		}
		idx := strconv.Itoa(i)
		docs = append(docs, rag.Document{
			ID:      idx,
			Content: strings.TrimSpace(b.TaggedDescription),
			Metadata: map[string]any{
				display.KeyBookIndex:     idx,
				display.KeyTitle:         b.Title,
				display.KeyAuthors:       b.Authors,
				display.KeyCategories:    b.Categories,
				display.KeyPublishedYear: b.PublishedYear,
				display.KeyISBN:          b.ISBN13,
				display.KeyThumbnail:     b.Thumbnail,
				display.KeyAverageRating: b.AverageRating,
				display.KeyNumPages:      numeric(b.NumPages),
				display.KeyRatingsCount:  b.RatingsCount,
			},
		})
		return true
	})
	return docs
}

// Build embeds every qualifying catalog row and replaces the vector index
// with the full document set. A catalog with no qualifying rows produces an
// empty index. Progress is reported via the optional progress callback.
func (p *Pipeline) Build(ctx context.Context, books *catalog.Store, progress func(msg string)) (Stats, error) {
	if progress == nil {
		progress = func(string) {}
	}
	start := time.Now()

	docs := BuildDocuments(books)
	stats := Stats{
		Rows:      books.Len(),
		Documents: len(docs),
		Skipped:   books.Len() - len(docs),
	}
	progress(fmt.Sprintf("prepared %d documents from %d catalog rows (%d skipped)", stats.Documents, stats.Rows, stats.Skipped))

	embeddings := make([][]float32, 0, len(docs))
	for lo := 0; lo < len(docs); lo += p.cfg.BatchSize {
		hi := min(lo+p.cfg.BatchSize, len(docs))

		texts := make([]string, 0, hi-lo)
		for _, d := range docs[lo:hi] {
			text := d.Content
			if !budget.Fits(text, p.cfg.MaxInputTokens) {
				text = budget.Truncate(text, p.cfg.MaxInputTokens)
				stats.Truncated++
			}
			texts = append(texts, text)
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("ingestion: embedding failed for documents %d-%d: %w", lo, hi-1, err)
		}
		if len(vecs) != len(texts) {
			return stats, fmt.Errorf("ingestion: embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		embeddings = append(embeddings, vecs...)
		progress(fmt.Sprintf("embedded %d/%d documents", hi, len(docs)))
	}

	if err := p.store.Replace(ctx, docs, embeddings); err != nil {
		return stats, fmt.Errorf("ingestion: replace index failed: %w", err)
	}

	stats.Duration = time.Since(start)
	if stats.Truncated > 0 {
		progress(fmt.Sprintf("truncated %d descriptions to %d estimated tokens for embedding", stats.Truncated, p.cfg.MaxInputTokens))
	}
	progress(fmt.Sprintf("indexed %d documents in %s", stats.Documents, stats.Duration.Round(time.Millisecond)))
	return stats, nil
}

// numeric parses integer-like catalog text as float64, 0 when unparsable
// or non-finite.
func numeric(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
