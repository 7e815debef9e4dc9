// Package metrics provides Prometheus instrumentation for QuillBill.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quillbill",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quillbill",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EntitlementChecksTotal counts entitlement checks by kind and verdict.
	EntitlementChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quillbill",
			Name:      "entitlement_checks_total",
			Help:      "Total entitlement checks by check kind and verdict.",
		},
		[]string{"check", "allowed"},
	)

	// EntitlementDenialsTotal counts denials by the gated action that produced them.
	EntitlementDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quillbill",
			Name:      "entitlement_denials_total",
			Help:      "Total entitlement denials by gated action.",
		},
		[]string{"action"},
	)

	// InvoicesCreatedTotal counts invoices created.
	InvoicesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quillbill",
		Name:      "invoices_created_total",
		Help:      "Total invoices created.",
	})

	// PDFExportsTotal counts successful PDF exports.
	PDFExportsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quillbill",
		Name:      "pdf_exports_total",
		Help:      "Total invoice PDF exports.",
	})

	// StripeWebhookEventsTotal counts Stripe webhook events by type and result.
	StripeWebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quillbill",
			Name:      "stripe_webhook_events_total",
			Help:      "Total Stripe webhook events by event type and processing result.",
		},
		[]string{"type", "result"},
	)

	// CheckoutSessionsTotal counts Stripe checkout sessions created.
	CheckoutSessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quillbill",
		Name:      "checkout_sessions_total",
		Help:      "Total Stripe checkout sessions created.",
	})

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quillbill",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quillbill", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quillbill", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quillbill", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quillbill", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EntitlementChecksTotal,
		EntitlementDenialsTotal,
		InvoicesCreatedTotal,
		PDFExportsTotal,
		StripeWebhookEventsTotal,
		CheckoutSessionsTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// ObserveEntitlementCheck records one evaluator verdict.
func ObserveEntitlementCheck(action string, allowed bool) {
	EntitlementChecksTotal.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
	if !allowed {
		EntitlementDenialsTotal.WithLabelValues(action).Inc()
	}
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

// statusBucket groups status codes into classes to keep label cardinality low.
func statusBucket(code int) string {
	switch {
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

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
