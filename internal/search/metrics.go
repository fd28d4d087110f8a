package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Fallback reasons recorded on bookrec_search_fallbacks_total.
const (
	reasonNoIndex     = "no_index"
	reasonError       = "error"
	reasonTimeout     = "timeout"
	reasonCircuitOpen = "circuit_open"
)

// searchMetrics holds the Prometheus collectors owned by a Service.
type searchMetrics struct {
	// requestsTotal counts completed searches by the path that served them.
	requestsTotal *prometheus.CounterVec

	// fallbacksTotal counts searches served by the fallback path, by reason.
	fallbacksTotal *prometheus.CounterVec

	// durationSeconds records end-to-end search latency by path.
	durationSeconds *prometheus.HistogramVec

	// results records the number of records returned per search.
	results prometheus.Histogram

	// breakerState is 0 (closed), 1 (half-open), or 2 (open).
	breakerState prometheus.Gauge
}

// newSearchMetrics registers the search collectors against reg. A nil reg
// creates unregistered collectors.
func newSearchMetrics(reg prometheus.Registerer) *searchMetrics {
	factory := promauto.With(reg)

	return &searchMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookrec",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of searches completed, partitioned by the path that served them.",
		}, []string{"path"}),

		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookrec",
			Subsystem: "search",
			Name:      "fallbacks_total",
			Help:      "Total number of searches served by substring fallback, partitioned by reason.",
		}, []string{"reason"}),

		durationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bookrec",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of searches, partitioned by path.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"path"}),

		results: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookrec",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of records returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		breakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bookrec",
			Subsystem: "search",
			Name:      "vector_breaker_state",
			Help:      "State of the vector search circuit breaker: 0 closed, 1 half-open, 2 open.",
		}),
	}
}

// stateToFloat converts circuit breaker state to its gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
