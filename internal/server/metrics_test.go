package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/bookrec-go/internal/logging"
	"github.com/54b3r/bookrec-go/internal/search"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T, f *fakeSearcher) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &Server{
		searcher: f,
		cfg: &Config{
			MetricsRegistry: reg,
			MetricsGatherer: reg,
		},
		log:     logging.Discard(),
		metrics: newServerMetrics(reg),
	}
	return s, reg
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t, &fakeSearcher{})

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_SearchOutcomes(t *testing.T) {
	t.Parallel()
	s, _ := newMetricsTestServer(t, &fakeSearcher{result: search.Result{Path: search.PathFallback}})

	postSearch(t, s, `{"query":"space"}`)
	postSearch(t, s, `{"query":"gardens"}`)
	postSearch(t, s, `{"query":""}`)
	postSearch(t, s, `not json`)

	if got := testutil.ToFloat64(s.metrics.searchOutcomes.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.searchOutcomes.WithLabelValues("bad_request")); got != 2 {
		t.Errorf("bad_request: want 2, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.searchOutcomes.WithLabelValues("error")); got != 0 {
		t.Errorf("error: want 0, got %v", got)
	}
}

func Test_Metrics_InstrumentRecordsStatus(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t, &fakeSearcher{})

	h := s.instrument("search", http.HandlerFunc(s.handleSearch))
	for _, body := range []string{`{"query":"x"}`, `{"query":""}`} {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(body))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("POST", "search", "200")); got != 1 {
		t.Errorf("200 count: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues("POST", "search", "400")); got != 1 {
		t.Errorf("400 count: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(s.metrics.httpInFlight); got != 0 {
		t.Errorf("in-flight should return to 0, got %v", got)
	}

	n, err := testutil.GatherAndCount(reg, "bookrec_http_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("want one duration series, got %d", n)
	}
}
