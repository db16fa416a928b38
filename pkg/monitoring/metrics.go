package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector manages Prometheus metrics for a service
type MetricsCollector struct {
	registry *prometheus.Registry
	service  string

	// Standard HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestsActive  prometheus.Gauge
}

// NewMetricsCollector creates a new metrics collector for a service
func NewMetricsCollector(service string) *MetricsCollector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	mc := &MetricsCollector{
		registry: registry,
		service:  service,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		}, []string{"method", "endpoint", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		}, []string{"method", "endpoint"}),
		RequestsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Number of HTTP requests currently being processed",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		}),
	}

	return mc
}

// NewCounter creates a new counter metric
func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	return promauto.With(mc.registry).NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
		ConstLabels: prometheus.Labels{
			"service": mc.service,
		},
	}, labels)
}

// NewGauge creates a new gauge metric
func (mc *MetricsCollector) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	return promauto.With(mc.registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
		ConstLabels: prometheus.Labels{
			"service": mc.service,
		},
	}, labels)
}

// NewHistogram creates a new histogram metric
func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return promauto.With(mc.registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: buckets,
		ConstLabels: prometheus.Labels{
			"service": mc.service,
		},
	}, labels)
}

// MetricsMiddleware returns gin middleware that records request metrics
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.RequestsActive.Inc()

		c.Next()

		mc.RequestsActive.Dec()
		duration := time.Since(start).Seconds()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		mc.RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		mc.RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// Handler returns a gin handler serving the metrics endpoint. It gathers
// the collector's own registry plus the default registry, so package-level
// promauto metrics show up alongside the HTTP metrics.
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	gatherer := prometheus.Gatherers{mc.registry, prometheus.DefaultGatherer}
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
