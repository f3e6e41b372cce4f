// Package metrics exposes Prometheus instrumentation for tle-fetcher.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tle_fetcher_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tle_fetcher_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	sourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tle_fetcher_source_fetches_total",
			Help: "Upstream TLE fetch attempts by provider and outcome.",
		},
		[]string{"source", "outcome"},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tle_fetcher_cache_hits_total",
			Help: "TLE lookups served without a network call, by tier.",
		},
		[]string{"tier"},
	)

	parseFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tle_fetcher_parse_failures_total",
			Help: "Payloads rejected by the TLE parsing core, by provider.",
		},
		[]string{"source"},
	)

	discoveryEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tle_fetcher_discovery_entries_total",
			Help: "New catalog entries stored by discovery runs.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(sourceFetchesTotal)
	prometheus.MustRegister(cacheHitsTotal)
	prometheus.MustRegister(parseFailuresTotal)
	prometheus.MustRegister(discoveryEntriesTotal)
}

// RecordSourceFetch counts one upstream fetch attempt.
func RecordSourceFetch(source string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	sourceFetchesTotal.WithLabelValues(source, outcome).Inc()
}

// RecordCacheHit counts a lookup served from the given tier
// ("memory" or "repository").
func RecordCacheHit(tier string) {
	cacheHitsTotal.WithLabelValues(tier).Inc()
}

// RecordParseFailure counts a payload the parsing core rejected.
func RecordParseFailure(source string) {
	parseFailuresTotal.WithLabelValues(source).Inc()
}

// RecordDiscoveryEntries counts new catalog entries from a discovery run.
func RecordDiscoveryEntries(source string, n int) {
	discoveryEntriesTotal.WithLabelValues(source).Add(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// knownRoutes are exact paths recorded under their own label.
var knownRoutes = map[string]bool{
	"/":        true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// normalizeRoute collapses parameterized TLE paths to one label and
// unknown paths (bots, scanners) to "other" to bound metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/tle/"); ok {
		if strings.HasSuffix(rest, "/epoch") && strings.Count(rest, "/") == 1 {
			return "/api/v1/tle/{id}/epoch"
		}
		if strings.HasSuffix(rest, "/position") && strings.Count(rest, "/") == 1 {
			return "/api/v1/tle/{id}/position"
		}
		if rest != "" && !strings.Contains(rest, "/") {
			return "/api/v1/tle/{id}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
