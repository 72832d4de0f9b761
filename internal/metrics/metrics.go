// Package metrics exposes Prometheus instrumentation for the render pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// Metrics collects render pipeline counters and serves the /metrics endpoint.
type Metrics struct {
	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	detections     *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// New creates a metrics collector registered on the default registry.
func New(namespace string, logger *zap.Logger) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewWithRegistry creates a metrics collector on a custom registry. Tests use
// this to avoid duplicate registration on the default registry.
func NewWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}

	m.rendersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "requests_total",
		Help:      "Render requests by final backend tag",
	}, []string{"backend"})

	m.renderDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "duration_seconds",
		Help:      "Time spent per render request",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"backend"})

	m.detections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "detect",
		Name:      "results_total",
		Help:      "SPA detection outcomes by verdict and confidence",
	}, []string{"is_spa", "confidence"})

	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by outcome",
	}, []string{"outcome"}) // outcome: hit, miss, bypass, error

	m.cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Rows currently in the result cache",
	})

	m.errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "errors_total",
		Help:      "Render errors by structured type",
	}, []string{"type"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint and status",
	}, []string{"endpoint", "status"})

	registerer.MustRegister(
		m.rendersTotal,
		m.renderDuration,
		m.detections,
		m.cacheLookups,
		m.cacheEntries,
		m.errorsTotal,
		m.httpRequests,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	m.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Info("Prometheus metrics initialized", zap.String("namespace", namespace))
	return m
}

// RecordRender records one completed render with its final backend tag.
func (m *Metrics) RecordRender(backend string, seconds float64) {
	m.rendersTotal.WithLabelValues(backend).Inc()
	m.renderDuration.WithLabelValues(backend).Observe(seconds)
}

// RecordDetection records one SPA classification outcome.
func (m *Metrics) RecordDetection(isSPA bool, confidence string) {
	verdict := "false"
	if isSPA {
		verdict = "true"
	}
	m.detections.WithLabelValues(verdict, confidence).Inc()
}

// RecordCacheLookup records a cache lookup outcome (hit, miss, bypass, error).
func (m *Metrics) RecordCacheLookup(outcome string) {
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// SetCacheEntries updates the cache size gauge.
func (m *Metrics) SetCacheEntries(n float64) {
	m.cacheEntries.Set(n)
}

// RecordError records a render error by structured type.
func (m *Metrics) RecordError(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(endpoint, status string) {
	m.httpRequests.WithLabelValues(endpoint, status).Inc()
}

// ServeHTTP serves the Prometheus exposition endpoint.
func (m *Metrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	m.httpHandler(ctx)
}
