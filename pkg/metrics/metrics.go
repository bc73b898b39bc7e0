package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "invoicehub",
		Name:      "http_in_flight_requests",
		Help:      "In-flight HTTP requests.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoicehub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latencies in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	InvoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "invoices_created_total",
		Help:      "Invoices created.",
	})

	InvoiceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "invoice_transitions_total",
		Help:      "Invoice status transitions by target status.",
	}, []string{"status"})

	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "password_reset_events_total",
		Help:      "Password reset requests and completions.",
	}, []string{"event"})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "audit_write_failures_total",
		Help:      "Audit entries that could not be persisted.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicehub",
		Name:      "notifications_total",
		Help:      "Outbound notifications by channel and result.",
	}, []string{"channel", "result"})
)

// Middleware records request count, latency and in-flight gauge per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := strconv.Itoa(c.Response().Status)
			method := c.Request().Method
			path := c.Path()
			httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler exposes the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
