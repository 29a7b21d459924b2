// Package metrics provides Prometheus instrumentation for the flip engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransactionsTotal counts recorded transactions, partitioned by side.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipdeck_transactions_total",
		Help: "Total number of transactions recorded",
	}, []string{"side"})

	// FlipsMatched tracks the size of the derived flip set after the last
	// reconciliation.
	FlipsMatched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flipdeck_flips_matched",
		Help: "Number of flips in the current derived set",
	})

	// MatchRate tracks the sell quantity match rate of the last
	// reconciliation, in percent.
	MatchRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flipdeck_match_rate_percent",
		Help: "Sell quantity matched against open lots, percent",
	})

	// SnapshotsIngested counts market snapshots accepted for evaluation.
	SnapshotsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flipdeck_snapshots_ingested_total",
		Help: "Total market snapshots ingested",
	})

	// SnapshotLatency tracks end-to-end snapshot processing time (ranking
	// plus alert evaluation).
	SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flipdeck_snapshot_latency_seconds",
		Help:    "Snapshot processing latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// AlertsEmitted counts triggered alerts by type.
	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipdeck_alerts_emitted_total",
		Help: "Total alerts emitted",
	}, []string{"type"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flipdeck_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipdeck_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flipdeck_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
