package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by all handlers.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Auth-level metrics. Failure codes match the error taxonomy exposed in
// response bodies so dashboards and clients speak the same vocabulary.
var (
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Authentication and authorization failures by code.",
		},
		[]string{"code"},
	)

	authTokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Tokens issued by kind (access, refresh).",
		},
		[]string{"kind"},
	)

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auth_sessions_active",
		Help: "Sessions currently active in the registry.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		authFailuresTotal, authTokensIssuedTotal, sessionsActive,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AuthFailure increments the failure counter for the given taxonomy code.
func AuthFailure(code string) {
	authFailuresTotal.WithLabelValues(code).Inc()
}

// TokenIssued increments the issued-token counter for the given kind.
func TokenIssued(kind string) {
	authTokensIssuedTotal.WithLabelValues(kind).Inc()
}

// SessionOpened and SessionClosed track the active session gauge.
func SessionOpened() { sessionsActive.Inc() }
func SessionClosed() { sessionsActive.Dec() }

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource ids so metric label cardinality stays
// bounded. Unknown shapes pass through unchanged.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "devices":
		return "/v1/devices/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "devices" && parts[3] == "readings":
		return "/v1/devices/:id/readings"
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "users" && parts[4] == "deactivate":
		return "/v1/admin/users/:id/deactivate"
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "sessions" && parts[4] == "revoke":
		return "/v1/admin/sessions/:id/revoke"
	}
	return path
}

// statusWriter captures the response code written by downstream handlers.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
