package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	Transitions          *prometheus.CounterVec
	TransitionsRefused   *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	PaymentSettlements   *prometheus.CounterVec
	RemindersSent        *prometheus.CounterVec
}

// New registers every collector on a fresh registry so that tests can build
// as many instances as they need.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_workflow_transitions_total",
				Help: "Manuscript workflow transitions applied.",
			},
			[]string{"action"},
		),
		TransitionsRefused: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_workflow_transitions_refused_total",
				Help: "Manuscript workflow transitions refused, by reason.",
			},
			[]string{"action", "reason"},
		),
		NotificationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_notification_failures_total",
				Help: "Notification deliveries that failed, by channel.",
			},
			[]string{"channel"},
		),
		PaymentSettlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_payment_settlements_total",
				Help: "APC payment settlements, by outcome.",
			},
			[]string{"outcome"},
		),
		RemindersSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "journal_reminders_sent_total",
				Help: "Overdue reminders sent, by kind.",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.Transitions,
		m.TransitionsRefused,
		m.NotificationFailures,
		m.PaymentSettlements,
		m.RemindersSent,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records request count, latency and in-flight requests. The route
// template is used as the path label to keep cardinality bounded.
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.httpInFlight.Inc()
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpInFlight.Dec()
	}
}
