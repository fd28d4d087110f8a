// Package search answers book queries. A query is first served by embedding
// similarity against the vector index; when no index is loaded, or the
// vector path fails for any reason, the catalog substring search answers
// instead. Either way the caller gets normalized display records and never
// a collaborator error.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/54b3r/bookrec-go/internal/catalog"
	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/rag"
)

// Paths reported by SearchWithPath.
const (
	PathVector   = "vector"
	PathFallback = "fallback"
)

// DefaultLimit is the number of results returned when a query sets none.
const DefaultLimit = 10

// Circuit breaker tuning for the vector path.
const (
	breakerName             = "vector-search"
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	breakerInterval         = time.Minute
)

// ErrEmptyQuery is returned when the query text is empty after trimming.
var ErrEmptyQuery = errors.New("search: query must not be empty")

// errRetrieverPanic wraps a panic recovered from the retriever.
var errRetrieverPanic = errors.New("search: retriever panicked")

// Query is a single search request.
type Query struct {
	// Text is the free-text query. Required.
	Text string
	// Category keeps only books whose categories equal it exactly. Empty
	// disables the filter.
	Category string
	// MinRating keeps only books rated at least this. Values <= 0 disable
	// the filter.
	MinRating float64
	// Limit caps the number of results. Values <= 0 use the service default.
	Limit int
}

// filtered reports whether the query narrows results beyond the text match.
func (q Query) filtered() bool {
	return q.Category != "" || q.MinRating > 0
}

// match reports whether a formatted record passes the query filters.
func (q Query) match(r display.Record) bool {
	if q.Category != "" && r.Categories != q.Category {
		return false
	}
	if q.MinRating > 0 && r.AverageRating < q.MinRating {
		return false
	}
	return true
}

// Result is the outcome of SearchWithPath.
type Result struct {
	// Records are the formatted results in ranked order.
	Records []display.Record
	// Path is PathVector or PathFallback.
	Path string
}

// Config holds the dependencies and tuning of a Service.
type Config struct {
	// Catalog is the book catalog searched by the fallback path and used to
	// fill display fields missing from index metadata. Nil means empty.
	Catalog *catalog.Store
	// Retriever serves the vector path. Nil disables vector search.
	Retriever rag.Retriever
	// DefaultLimit applies when Query.Limit is not set. Defaults to
	// DefaultLimit if zero.
	DefaultLimit int
	// Overfetch multiplies the number of documents requested from the
	// retriever when a filter is active. Defaults to 1 (no over-fetch).
	Overfetch int
	// VectorTimeout bounds one vector retrieval. Zero means no bound beyond
	// the request context.
	VectorTimeout time.Duration
	// Logger is the structured logger. If nil, [logging.Discard] is used.
	Logger *slog.Logger
	// Registerer receives the search metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Service executes searches. It is safe for concurrent use: the catalog and
// retriever are read-only, and the breaker and metrics synchronize
// internally.
type Service struct {
	catalog       *catalog.Store
	retriever     rag.Retriever
	defaultLimit  int
	overfetch     int
	vectorTimeout time.Duration
	log           *slog.Logger
	metrics       *searchMetrics
	breaker       *gobreaker.CircuitBreaker[[]rag.Document]
}

// New constructs a Service from cfg.
func New(cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	s := &Service{
		catalog:       cfg.Catalog,
		retriever:     cfg.Retriever,
		defaultLimit:  cfg.DefaultLimit,
		overfetch:     cfg.Overfetch,
		vectorTimeout: cfg.VectorTimeout,
		log:           cfg.Logger,
		metrics:       newSearchMetrics(cfg.Registerer),
	}
	if s.catalog == nil {
		s.catalog = catalog.Empty()
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultLimit
	}
	if s.overfetch <= 0 {
		s.overfetch = 1
	}
	if s.log == nil {
		s.log = logging.Discard()
	}

	s.breaker = gobreaker.NewCircuitBreaker[[]rag.Document](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		// A caller that goes away is not a vector store failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("search: circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			s.metrics.breakerState.Set(stateToFloat(to))
		},
	})

	return s
}

// VectorEnabled reports whether a vector index is loaded.
func (s *Service) VectorEnabled() bool {
	return s.retriever != nil
}

// Catalog returns the catalog the service searches.
func (s *Service) Catalog() *catalog.Store {
	return s.catalog
}

// Search runs q and returns the formatted results. The only error it
// returns is ErrEmptyQuery.
func (s *Service) Search(ctx context.Context, q Query) ([]display.Record, error) {
	res, err := s.SearchWithPath(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// SearchWithPath is Search that also reports which path served the query.
func (s *Service) SearchWithPath(ctx context.Context, q Query) (Result, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return Result{}, ErrEmptyQuery
	}
	if q.Limit <= 0 {
		q.Limit = s.defaultLimit
	}
	start := time.Now()

	res := Result{Path: PathFallback}
	if s.retriever == nil {
		s.metrics.fallbacksTotal.WithLabelValues(reasonNoIndex).Inc()
		res.Records = s.fallback(q)
	} else if recs, err := s.vector(ctx, q); err != nil {
		reason := fallbackReason(err)
		s.log.Warn("search: vector search failed, using text fallback",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		s.metrics.fallbacksTotal.WithLabelValues(reason).Inc()
		res.Records = s.fallback(q)
	} else {
		res.Path = PathVector
		res.Records = recs
	}

	s.metrics.requestsTotal.WithLabelValues(res.Path).Inc()
	s.metrics.durationSeconds.WithLabelValues(res.Path).Observe(time.Since(start).Seconds())
	s.metrics.results.Observe(float64(len(res.Records)))
	s.log.Debug("search: completed",
		slog.String("path", res.Path),
		slog.Int("results", len(res.Records)),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// vector retrieves the top documents by similarity, formats them, and
// applies the filters to the retrieved set. At most q.Limit records survive.
func (s *Service) vector(ctx context.Context, q Query) ([]display.Record, error) {
	k := q.Limit
	if q.filtered() {
		k *= s.overfetch
	}

	if s.vectorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.vectorTimeout)
		defer cancel()
	}

	docs, err := s.breaker.Execute(func() (docs []rag.Document, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", errRetrieverPanic, r)
			}
		}()
		return s.retriever.Retrieve(ctx, q.Text, k)
	})
	if err != nil {
		return nil, err
	}

	records := make([]display.Record, 0, q.Limit)
	for _, d := range docs {
		rec := display.FromMetadata(s.joinBack(d), d.Content)
		if !q.match(rec) {
			continue
		}
		records = append(records, rec)
		if len(records) == q.Limit {
			break
		}
	}
	return records, nil
}

// fallback filters the catalog, substring-matches the query, and formats the
// first q.Limit rows in catalog order.
func (s *Service) fallback(q Query) []display.Record {
	books := s.catalog.Search(q.Text, catalog.Filter{Category: q.Category, MinRating: q.MinRating}, q.Limit)
	records := make([]display.Record, 0, len(books))
	for _, b := range books {
		records = append(records, display.FromBook(b))
	}
	return records
}

// joinBack returns d's metadata with display fields it lacks taken from the
// catalog row at book_index. The description is only taken from the catalog
// when the document has no content. The document's own metadata is never
// modified.
func (s *Service) joinBack(d rag.Document) map[string]any {
	meta := d.Metadata
	idxText := display.MetaString(meta, display.KeyBookIndex)
	if idxText == "" {
		idxText = d.ID
	}

	var (
		book catalog.BookRecord
		ok   bool
	)
	if idx, err := strconv.Atoi(idxText); err == nil {
		book, ok = s.catalog.At(idx)
	}

	missing := func(key string) bool {
		_, present := meta[key]
		return !present
	}
	fills := map[string]any{}
	if missing(display.KeyBookIndex) && idxText != "" {
		fills[display.KeyBookIndex] = idxText
	}
	if ok {
		candidates := map[string]any{
			display.KeyTitle:         book.Title,
			display.KeyAuthors:       book.Authors,
			display.KeyCategories:    book.Categories,
			display.KeyPublishedYear: book.PublishedYear,
			display.KeyAverageRating: book.AverageRating,
			display.KeyNumPages:      book.NumPages,
			display.KeyThumbnail:     book.Thumbnail,
		}
		for k, v := range candidates {
			if missing(k) {
				fills[k] = v
			}
		}
		if strings.TrimSpace(d.Content) == "" && missing(display.KeyDescription) {
			fills[display.KeyDescription] = book.Description
		}
	}
	if len(fills) == 0 {
		return meta
	}

	out := make(map[string]any, len(meta)+len(fills))
	for k, v := range meta {
		out[k] = v
	}
	for k, v := range fills {
		out[k] = v
	}
	return out
}

// fallbackReason classifies a vector-path error for metrics and logs.
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return reasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	default:
		return reasonError
	}
}
