// Package metrics exposes Prometheus instrumentation for executions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution outcomes used as label values.
const (
	OutcomeSuccess         = "success"
	OutcomeCaveats         = "caveats"
	OutcomeFailure         = "failure"
	OutcomeValidationError = "validation_error"
	OutcomeConfigError     = "config_error"
)

// Collector owns a private registry so tests and multiple servers never collide
// on the global one. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	executionsTotal      *prometheus.CounterVec
	executionDuration    prometheus.Histogram
	stepsRecorded        prometheus.Counter
	sessionsOpened       *prometheus.CounterVec
	sessionCloseFailures prometheus.Counter
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

// NewCollector registers all metrics under namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		executionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of prompt executions by outcome",
		}, []string{"outcome"}),
		executionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall-clock duration of prompt executions",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		stepsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_recorded_total",
			Help:      "Total number of recorded steps",
		}),
		sessionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of browser sessions opened by provider",
		}, []string{"provider"}),
		sessionCloseFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_close_failures_total",
			Help:      "Total number of browser sessions that failed to close",
		}),
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordExecution counts a finished execution.
func (c *Collector) RecordExecution(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.executionsTotal.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.executionDuration.Observe(d.Seconds())
	}
}

// RecordStep counts one appended step.
func (c *Collector) RecordStep() {
	if c == nil {
		return
	}
	c.stepsRecorded.Inc()
}

// RecordSessionOpened counts a session opened on provider.
func (c *Collector) RecordSessionOpened(provider string) {
	if c == nil {
		return
	}
	c.sessionsOpened.WithLabelValues(provider).Inc()
}

// RecordSessionCloseFailure counts a swallowed close error.
func (c *Collector) RecordSessionCloseFailure() {
	if c == nil {
		return
	}
	c.sessionCloseFailures.Inc()
}

// RecordHTTPRequest counts one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
