package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/bookrec-go/internal/display"
	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/search"
)

// maxSearchBody caps the POST /search request body.
const maxSearchBody = 64 << 10

// Client-facing error messages.
const (
	msgEmptyQuery   = "Please enter a search query"
	msgInvalidBody  = "Invalid request body"
	msgSearchFailed = "Search failed. Please try again."
)

// suggestions is the fixed list returned by GET /suggestions.
var suggestions = []string{
	"children's book about nature and animals",
	"science fiction space adventure",
	"historical fiction romance",
	"mystery thriller suspense",
	"business leadership strategy",
	"self improvement motivation",
	"cooking recipes food",
	"fantasy magic dragons",
	"biography historical figure",
	"science environment ecology",
}

// handleSearch handles POST /search. It returns 400 for an empty query or a
// malformed body, 500 when the search itself fails, and otherwise
// {query, count, results}. The path that served the query is reported in the
// X-Search-Path header.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("search panic", slog.Any("panic", rec))
			s.metrics.searchOutcomes.WithLabelValues("error").Inc()
			writeError(w, r, http.StatusInternalServerError, msgSearchFailed)
		}
	}()

	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&req); err != nil {
		log.Warn("search: invalid request body", slog.Any("error", err))
		s.metrics.searchOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	query := strings.TrimSpace(req.Query)
	log.Info("search request",
		slog.String("query", query),
		slog.String("category", req.Category),
		slog.Float64("min_rating", float64(req.MinRating)),
	)

	res, err := s.searcher.SearchWithPath(r.Context(), search.Query{
		Text:      query,
		Category:  req.Category,
		MinRating: float64(req.MinRating),
	})
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		s.metrics.searchOutcomes.WithLabelValues("bad_request").Inc()
		writeError(w, r, http.StatusBadRequest, msgEmptyQuery)
		return
	case err != nil:
		log.Error("search error", slog.Any("error", err))
		s.metrics.searchOutcomes.WithLabelValues("error").Inc()
		writeError(w, r, http.StatusInternalServerError, msgSearchFailed)
		return
	}

	results := res.Records
	if results == nil {
		results = []display.Record{}
	}
	s.metrics.searchOutcomes.WithLabelValues("ok").Inc()
	w.Header().Set(headerSearchPath, res.Path)
	writeJSON(w, r, http.StatusOK, searchResponse{
		Query:   query,
		Count:   len(results),
		Results: results,
	})
}

// handleSuggestions handles GET /suggestions.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, suggestionsResponse{Suggestions: suggestions})
}

// handleStats handles GET /api/stats with the catalog size, whether semantic
// search is available, and the category list for the UI filter.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	books := s.searcher.Catalog()
	writeJSON(w, r, http.StatusOK, statsResponse{
		TotalBooks:  books.Len(),
		VectorIndex: s.searcher.VectorEnabled(),
		Categories:  books.Categories(),
	})
}
