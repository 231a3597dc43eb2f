// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InvoicesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_invoices_total",
		Help: "Invoice creation attempts, labeled by result",
	}, []string{"result"})

	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_confirmations_total",
		Help: "Payment confirmations handled, labeled by channel and outcome",
	}, []string{"channel", "outcome"})

	LedgerWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_ledger_write_failures_total",
		Help: "Ledger appends that failed and left the order open",
	})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_webhook_signature_failures_total",
		Help: "Payment callbacks discarded because of a bad signature",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

// Middleware records request counts and latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
