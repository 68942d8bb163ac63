package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsRecorder fulfills MetricsRecorder with a scrapeable
// Prometheus registry: an operation-labelled duration histogram plus
// operation/status result counters. Each recorder owns its registry, so
// repeated constructions never trip duplicate-registration panics.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs a recorder with a fresh registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &PrometheusMetricsRecorder{
		registry: registry,
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scoutcore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoutcore",
			Subsystem: "service",
			Name:      "operation_results_total",
			Help:      "Service operation outcomes by status",
		}, []string{"operation", "status"}),
	}
}

// Observe records one service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, statusLabel(success)).Inc()
}

// Registry exposes the underlying registry for test gathering and for
// callers that register additional collectors.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an http.Handler serving the recorder's registry in the
// Prometheus exposition format, ready to mount at /metrics.
func (r *PrometheusMetricsRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
