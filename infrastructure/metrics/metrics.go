package metrics

import (
	"net/http"
	"strconv"
	"time"

	"crosspost/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crosspost"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	reconciled       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "attempts_total",
			Help:      "Platform send attempts by outcome.",
		}, []string{"platform", "result", "reason"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Latency of platform send attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 11), // 10ms to ~10s
		}, []string{"platform"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "entries_total",
			Help:      "Offline queue entries by reconciliation bucket.",
		}, []string{"bucket"}),
	}
	m.registry.MustRegister(
		m.dispatches, m.dispatchDuration, m.httpRequests, m.httpDuration, m.reconciled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveDispatch records one platform send attempt.
func (m *Metrics) ObserveDispatch(platform string, succeeded bool, reason model.DispatchReason, latency time.Duration) {
	result, label := "failed", string(reason)
	if succeeded {
		result = "succeeded"
	}
	if label == "" {
		label = "none"
	}
	m.dispatches.WithLabelValues(platform, result, label).Inc()
	m.dispatchDuration.WithLabelValues(platform).Observe(latency.Seconds())
}

// ObserveReconciliation counts one reconciliation report.
func (m *Metrics) ObserveReconciliation(report model.ReconciliationReport) {
	m.reconciled.WithLabelValues("succeeded").Add(float64(len(report.Succeeded)))
	m.reconciled.WithLabelValues("retry_later").Add(float64(len(report.RetryLater)))
	m.reconciled.WithLabelValues("permanent").Add(float64(len(report.PermanentlyFailed)))
}

// Middleware records request counts and latency by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
