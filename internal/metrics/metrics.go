// Package metrics provides Prometheus instrumentation for the settlement engine.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settld",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settld",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// TransitionsTotal counts status transitions by target status.
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settld",
			Name:      "transitions_total",
			Help:      "Total status transitions by target status.",
		},
		[]string{"status"},
	)

	// TransitionConflictsTotal counts lost optimistic-concurrency races.
	TransitionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settld",
		Name:      "transition_conflicts_total",
		Help:      "Total transitions that lost an optimistic-concurrency race.",
	})

	// SweepReleasedTotal counts escrows released by the sweep.
	SweepReleasedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settld",
		Name:      "sweep_released_total",
		Help:      "Total escrowed transactions auto-released by the sweep.",
	})

	// SweepSkippedTotal counts sweep candidates skipped (claimed elsewhere,
	// disputed in the interim, or no longer eligible on re-read).
	SweepSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settld",
		Name:      "sweep_skipped_total",
		Help:      "Total sweep candidates skipped without side effects.",
	})

	// SweepFailedTotal counts per-item sweep failures.
	SweepFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settld",
		Name:      "sweep_failed_total",
		Help:      "Total sweep items that failed.",
	})

	// SweepDuration observes full sweep cycle latency.
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "settld",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one release sweep cycle in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// GatewayCallDuration observes payment gateway call latency by operation.
	GatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "settld",
			Name:      "gateway_call_duration_seconds",
			Help:      "Payment gateway call duration in seconds by operation.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// GatewayErrorsTotal counts gateway failures by operation.
	GatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settld",
			Name:      "gateway_errors_total",
			Help:      "Total payment gateway failures by operation.",
		},
		[]string{"operation"},
	)

	// OperatorAlertsTotal counts fatal inconsistencies raised to operators.
	OperatorAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "settld",
			Name:      "operator_alerts_total",
			Help:      "Total operator alerts raised by kind.",
		},
		[]string{"kind"},
	)

	// DisputesOpenGauge tracks transactions currently in disputed status.
	DisputesOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "settld",
		Name:      "disputes_open",
		Help:      "Number of transactions currently disputed.",
	})

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "settld", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "settld", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "settld", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "settld", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TransitionsTotal,
		TransitionConflictsTotal,
		SweepReleasedTotal,
		SweepSkippedTotal,
		SweepFailedTotal,
		SweepDuration,
		GatewayCallDuration,
		GatewayErrorsTotal,
		OperatorAlertsTotal,
		DisputesOpenGauge,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
