package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	forwardsTotal   *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	requestSize     *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeForwards  prometheus.Gauge
	historyDropped  prometheus.Counter
	routeReloads    prometheus.Counter
	buildInfo       *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "hookgw"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.forwardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "Total number of forwarding attempts",
		},
		[]string{"key", "status"},
	)

	m.forwardDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Forwarding round-trip duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"key"},
	)

	m.requestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_size_bytes",
			Help:      "Forwarded request body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"key"},
	)

	m.responseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Relayed response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"key"},
	)

	m.activeForwards = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_forwards",
			Help:      "Number of forwards currently in flight",
		},
	)

	m.historyDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_dropped_total",
			Help:      "History log writes dropped due to write errors",
		},
	)

	m.routeReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_reloads_total",
			Help:      "Total number of route table reloads",
		},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version"},
	)

	m.registry.MustRegister(
		m.forwardsTotal,
		m.forwardDuration,
		m.requestSize,
		m.responseSize,
		m.activeForwards,
		m.historyDropped,
		m.routeReloads,
		m.buildInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RecordForward records a completed forwarding attempt.
func (m *Metrics) RecordForward(key, status string, durationSeconds float64, reqBytes, respBytes int64) {
	m.forwardsTotal.WithLabelValues(key, status).Inc()
	m.forwardDuration.WithLabelValues(key).Observe(durationSeconds)
	m.requestSize.WithLabelValues(key).Observe(float64(reqBytes))
	m.responseSize.WithLabelValues(key).Observe(float64(respBytes))
}

// RecordRejection records a forwarding attempt rejected before any
// downstream call was made.
func (m *Metrics) RecordRejection(key, status string) {
	m.forwardsTotal.WithLabelValues(key, status).Inc()
}

// ForwardStarted increments the in-flight gauge.
func (m *Metrics) ForwardStarted() {
	m.activeForwards.Inc()
}

// ForwardFinished decrements the in-flight gauge.
func (m *Metrics) ForwardFinished() {
	m.activeForwards.Dec()
}

// RecordHistoryDrop records a dropped durable history write.
func (m *Metrics) RecordHistoryDrop() {
	m.historyDropped.Inc()
}

// RecordRouteReload records a route table reload.
func (m *Metrics) RecordRouteReload() {
	m.routeReloads.Inc()
}

// SetBuildInfo sets the build info metric.
func (m *Metrics) SetBuildInfo(version string) {
	m.buildInfo.WithLabelValues(version).Set(1)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
