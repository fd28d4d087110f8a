package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// ErrEmptyQuery is returned by Retrieve when the query is blank.
var ErrEmptyQuery = errors.New("rag: query must not be empty")

// defaultRetrieveK is the result count used when neither the caller nor the
// constructor names one.
const defaultRetrieveK = 10

// IndexRetriever answers book queries against a built vector index: the
// query is embedded with the model that built the index and the store
// returns its nearest neighbours. Results are cleaned up before they reach
// the search layer, see Retrieve.
type IndexRetriever struct {
	embedder Embedder
	store    VectorStore

	// defaultTopK applies when Retrieve is called with topK <= 0.
	defaultTopK int
}

// NewRetriever constructs an IndexRetriever. defaultTopK <= 0 selects 10.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*IndexRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = defaultRetrieveK
	}
	return &IndexRetriever{
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds query and returns at most topK books ordered by descending
// similarity. Documents with a NaN score or a repeated ID are dropped, and
// scores are clamped to the cosine range [-1, 1].
func (r *IndexRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}
	if !finite(embeddings[0]) {
		return nil, fmt.Errorf("rag: query embedding has non-finite components")
	}

	docs, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	return rankBooks(docs, topK), nil
}

// rankBooks normalizes store output: NaN scores and duplicate IDs are
// removed, scores are clamped, the rest is stably sorted by descending score
// and capped at k.
func rankBooks(docs []Document, k int) []Document {
	out := make([]Document, 0, min(len(docs), k))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		score := float64(d.Score)
		if math.IsNaN(score) {
			continue
		}
		if _, dup := seen[d.ID]; dup {
			continue
		}
		seen[d.ID] = struct{}{}
		d.Score = float32(max(-1, min(1, score)))
		out = append(out, d)
	}

	slices.SortStableFunc(out, func(a, b Document) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(out) > k {
		out = out[:k]
	}
	return out
}

// finite reports whether v has no NaN or infinite components.
func finite(v []float32) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
