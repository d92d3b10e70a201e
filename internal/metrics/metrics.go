// Package metrics exposes the service's Prometheus instruments on a private
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "config_service"

// Lookup results.
const (
	LookupFound    = "found"
	LookupNotFound = "not_found"
	LookupError    = "error"
)

// Reload results.
const (
	ReloadSuccess = "success"
	ReloadFailure = "failure"
)

// Collector owns every metric the service records. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec
	backendErrors   *prometheus.CounterVec
	reloadsTotal    *prometheus.CounterVec
}

// NewCollector registers the service metrics with registry. A nil registry
// gets a fresh private one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "lookups_total",
				Help:      "Config lookups by backend and result",
			},
			[]string{"backend", "result"},
		),
		backendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "errors_total",
				Help:      "Backend failures by backend and operation",
			},
			[]string{"backend", "operation"},
		),
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "backend",
				Name:      "reloads_total",
				Help:      "Backend reloads by backend and result",
			},
			[]string{"backend", "result"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.lookupsTotal,
		c.backendErrors,
		c.reloadsTotal,
	)
	return c
}

// ObserveRequest records one completed HTTP request. route is the matched
// pattern, never the raw path, to keep label cardinality bounded.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLookup counts a GetConfig outcome.
func (c *Collector) RecordLookup(backend, result string) {
	if c == nil {
		return
	}
	c.lookupsTotal.WithLabelValues(backend, result).Inc()
}

// RecordBackendError counts a failed backend operation.
func (c *Collector) RecordBackendError(backend, operation string) {
	if c == nil {
		return
	}
	c.backendErrors.WithLabelValues(backend, operation).Inc()
}

// RecordReload counts a reload attempt.
func (c *Collector) RecordReload(backend, result string) {
	if c == nil {
		return
	}
	c.reloadsTotal.WithLabelValues(backend, result).Inc()
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
