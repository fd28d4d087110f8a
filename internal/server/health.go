package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/search"
)

// checkTimeout bounds each dependency check run by GET /api/ready.
const checkTimeout = 5 * time.Second

// Pinger is a dependency that GET /api/ready checks.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is reachable.
	Ping(ctx context.Context) error
	// Name labels the dependency in readiness responses, e.g. "catalog".
	Name() string
}

// vectorDependency is implemented by pingers that only the vector search
// path needs. When one fails, searches are still answered from the catalog,
// so the service is reported degraded instead of unready.
type vectorDependency interface {
	VectorDependency() bool
}

func isVectorDependency(p Pinger) bool {
	v, ok := p.(vectorDependency)
	return ok && v.VectorDependency()
}

// healthResponse is the JSON body of GET /api/health.
type healthResponse struct {
	Status string `json:"status"`
	// Books is the number of catalog rows loaded.
	Books int `json:"books"`
	// VectorIndex is true when a vector index was loaded at startup.
	VectorIndex bool `json:"vector_index"`
	// SearchPath is the path new queries will try first.
	SearchPath string `json:"search_path"`
}

// dependencyCheck is the result of checking one dependency.
type dependencyCheck struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Vector marks a dependency of the vector path only.
	Vector     bool    `json:"vector,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// readyResponse is the JSON body of GET /api/ready.
type readyResponse struct {
	// Ready is false when any dependency outside the vector path failed.
	Ready bool `json:"ready"`
	// Degraded is true when a vector dependency failed and searches are
	// served by the catalog fallback.
	Degraded   bool              `json:"degraded"`
	SearchPath string            `json:"search_path"`
	Checks     []dependencyCheck `json:"checks"`
}

// handleHealth handles GET /api/health. It always answers 200 and reports
// what the process has loaded, without contacting any dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	vector := s.searcher.VectorEnabled()
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:      "ok",
		Books:       s.searcher.Catalog().Len(),
		VectorIndex: vector,
		SearchPath:  searchPath(vector),
	})
}

// handleReady handles GET /api/ready. Each pinger is checked with its own
// timeout. The response is 503 when a catalog-side dependency fails and 200
// otherwise, with degraded set when only vector dependencies failed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: make([]dependencyCheck, 0, len(s.pingers))}
	for _, p := range s.pingers {
		check := runCheck(r.Context(), p)
		if !check.OK {
			if check.Vector {
				resp.Degraded = true
			} else {
				resp.Ready = false
			}
			log.Warn("readiness check failed",
				slog.String("dependency", check.Name),
				slog.Bool("vector", check.Vector),
				slog.String("error", check.Error),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}
	resp.SearchPath = searchPath(s.searcher.VectorEnabled() && !resp.Degraded)

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

func runCheck(ctx context.Context, p Pinger) dependencyCheck {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	check := dependencyCheck{
		Name:       p.Name(),
		OK:         err == nil,
		Vector:     isVectorDependency(p),
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		check.Error = err.Error()
	}
	return check
}

func searchPath(vector bool) string {
	if vector {
		return search.PathVector
	}
	return search.PathFallback
}
