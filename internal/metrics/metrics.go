// Package metrics provides Prometheus instrumentation for the market engine.
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
	// TradesTotal counts executed trades, partitioned by type and side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedmarket_trades_total",
		Help: "Total number of trades executed",
	}, []string{"type", "side"})

	// TradeLatency tracks trade execution latency by type.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seedmarket_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	// TradeRejections counts trades rejected by business rules.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedmarket_trade_rejections_total",
		Help: "Trades rejected by validation or business rules",
	}, []string{"reason"})

	// LiquidationsTotal counts completed market liquidations.
	LiquidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedmarket_liquidations_total",
		Help: "Markets liquidated",
	})

	// SeedsPaidOut accumulates Seeds credited to winners at liquidation.
	SeedsPaidOut = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedmarket_liquidation_seeds_paid_total",
		Help: "Seeds paid to winning positions at liquidation",
	})

	// TicksRecorded counts price ticks written by the history recorder.
	TicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedmarket_ticks_recorded_total",
		Help: "Price ticks recorded",
	})

	// TicksDropped counts ticks dropped because the recorder queue was full.
	TicksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedmarket_ticks_dropped_total",
		Help: "Price ticks dropped due to a full recorder queue",
	})

	// SnapshotRuns counts daily snapshot sweeps.
	SnapshotRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seedmarket_snapshot_runs_total",
		Help: "Daily snapshot sweeps executed",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seedmarket_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedmarket_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seedmarket_http_request_duration_seconds",
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

		// Use the raw path for the label; route patterns keep cardinality low
		// enough for this service's fixed API surface.
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
