// Package rag defines the interfaces for the semantic retrieval path:
// vector storage, query embedding, and document retrieval.
// Concrete implementations (SQLite file, Qdrant) satisfy these interfaces so
// the search layer never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrIndexNotFound is returned by the Open* constructors when no built index
// exists at the configured location. Callers treat it as "no vector index
// available" and fall back to catalog search.
var ErrIndexNotFound = errors.New("rag: vector index not found")

// Document is one entry of the vector index: the embedded text plus the
// metadata stored alongside its embedding.
type Document struct {
	// ID is the unique, stable identifier of the document within the index.
	ID string

	// Content is the text that was embedded.
	Content string

	// Metadata holds display fields. Values are string or float64 when
	// written; backends may return other scalar types (e.g. int64) on read.
	Metadata map[string]any

	// Score is the similarity score assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document
// embeddings. The index is built in one shot and is read-only afterwards.
// Implementations must be safe to call Search from multiple goroutines.
type VectorStore interface {
	// Replace discards any existing index content and stores docs with their
	// pre-computed embeddings in a single batch.
	// The embeddings slice must be parallel to docs: embeddings[i] is the vector for docs[i].
	Replace(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the top-k documents by descending similarity to the
	// query embedding.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the search service to fetch
// the documents most similar to a query. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most similar documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}
