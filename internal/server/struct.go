package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/bookrec-go/internal/catalog"
	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/search"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 5002).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers are the dependencies checked by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on POST /search
	// (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// UIDir is the directory of static files served at /. Ignored when empty
	// or missing.
	UIDir string
	// MetricsRegistry receives the HTTP metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer serves GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// searcher is the interface the search handlers call.
// *search.Service satisfies it; tests inject a fake.
type searcher interface {
	// SearchWithPath runs one query and reports the path that served it.
	SearchWithPath(ctx context.Context, q search.Query) (search.Result, error)
	// VectorEnabled reports whether a vector index is loaded.
	VectorEnabled() bool
	// Catalog returns the catalog being searched.
	Catalog() *catalog.Store
}

// Server is the HTTP server that exposes book search.
type Server struct {
	// searcher answers POST /search and backs GET /api/stats.
	searcher searcher
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers are the dependencies checked by GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /search.
type searchRequest struct {
	// Query is the free-text search query.
	Query string `json:"query"`
	// Category optionally restricts results to one category.
	Category string `json:"category"`
	// MinRating optionally drops books rated below it.
	MinRating flexFloat `json:"min_rating"`
}

// searchResponse is the JSON response for POST /search.
type searchResponse struct {
	// Query is the trimmed query that was run.
	Query string `json:"query"`
	// Count is len(Results).
	Count int `json:"count"`
	// Results are the matching books in ranked order.
	Results []display.Record `json:"results"`
}

// suggestionsResponse is the JSON response for GET /suggestions.
type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// statsResponse is the JSON response for GET /api/stats.
type statsResponse struct {
	// TotalBooks is the number of catalog rows loaded.
	TotalBooks int `json:"total_books"`
	// VectorIndex is true when semantic search is available.
	VectorIndex bool `json:"vector_index"`
	// Categories are the distinct catalog categories, sorted.
	Categories []string `json:"categories"`
}

// errorResponse is the JSON body of every 4xx/5xx response.
type errorResponse struct {
	Error string `json:"error"`
}

// flexFloat decodes a JSON number, a numeric string, an empty string, or
// null. Empty and null decode as 0.
type flexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("min_rating: %q is not a number", s)
	}
	*f = flexFloat(v)
	return nil
}
