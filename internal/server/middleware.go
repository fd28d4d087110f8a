package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/bookrec-go/internal/logging"
)

// Request and response headers shared by the middleware and handlers.
const (
	headerRequestID  = "X-Request-ID"
	headerSearchPath = "X-Search-Path"
)

// maxRequestIDLen caps an inbound X-Request-ID that is reused.
const maxRequestIDLen = 64

// requestLogger gives every request an ID, puts a logger carrying it into
// the request context, echoes it in X-Request-ID, and writes one access log
// line on completion. A well-formed inbound X-Request-ID is kept so a
// front-end's ID follows the query into the search logs. Search requests
// also log the path that served them.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(headerRequestID)
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}

		log := base.With(
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		w.Header().Set(headerRequestID, reqID)
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		attrs := []slog.Attr{
			slog.Int("status", rw.status),
			slog.Int("bytes", rw.bytes),
			slog.Duration("duration", time.Since(start)),
		}
		if p := rw.Header().Get(headerSearchPath); p != "" {
			attrs = append(attrs, slog.String("search_path", p))
		}
		log.LogAttrs(r.Context(), slog.LevelInfo, "request", attrs...)
	})
}

// validRequestID accepts IDs of printable, non-space ASCII up to
// maxRequestIDLen bytes.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

// responseWriter records the status code and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

// WriteHeader records code before delegating.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts the bytes written before delegating.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
