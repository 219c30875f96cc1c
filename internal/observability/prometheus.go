// Package observability provides Prometheus metrics for the chat relay.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"

	"github.com/sparkmatch/chatrelay/internal/usage"
)

// Metrics collects relay-level Prometheus metrics.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	cacheHitRate    prometheus.Histogram
	savingsUSD      prometheus.Counter
	activeRequests  prometheus.Gauge
}

var (
	globalMetrics     *Metrics
	globalMetricsOnce sync.Once
)

// GetMetrics returns the global metrics collector singleton.
func GetMetrics() *Metrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = newMetrics()
	})
	return globalMetrics
}

func newMetrics() *Metrics {
	const (
		namespace = "chatrelay"
		subsystem = "relay"
	)

	return &Metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total chat requests by model type and status",
		}, []string{"model", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Upstream call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model"}),

		tokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_total",
			Help:      "Token totals by kind (input, cache_read, cache_creation, output)",
		}, []string{"kind"}),

		cacheHitRate: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hit_rate",
			Help:      "Per-request provider cache hit rate",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),

		savingsUSD: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "savings_usd_total",
			Help:      "Accumulated estimated cost savings from prompt caching",
		}),

		activeRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_requests",
			Help:      "Chat requests currently in flight",
		}),
	}
}

// Sink returns a usage sink that feeds these metrics.
func (m *Metrics) Sink() usage.Sink {
	return func(sample usage.Sample, breakdown usage.CostBreakdown) {
		m.requestsTotal.WithLabelValues(sample.Model, sample.Status).Inc()
		m.requestDuration.WithLabelValues(sample.Model).Observe(sample.Latency.Seconds())

		m.tokensTotal.WithLabelValues("input").Add(float64(sample.Stats.InputTokens))
		m.tokensTotal.WithLabelValues("cache_read").Add(float64(sample.Stats.CacheReadTokens))
		m.tokensTotal.WithLabelValues("cache_creation").Add(float64(sample.Stats.CacheCreationTokens))
		m.tokensTotal.WithLabelValues("output").Add(float64(sample.Stats.OutputTokens))

		if sample.Status == "success" {
			m.cacheHitRate.Observe(sample.Stats.CacheHitRate())
			if breakdown.Savings > 0 {
				m.savingsUSD.Add(breakdown.Savings)
			}
		}
	}
}

// RequestStarted marks a request in flight.
func (m *Metrics) RequestStarted() { m.activeRequests.Inc() }

// RequestFinished marks a request complete.
func (m *Metrics) RequestFinished() { m.activeRequests.Dec() }

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
