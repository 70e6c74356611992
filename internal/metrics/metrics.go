// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "poe_shim"

// Metrics groups the shim's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	controllerRequests *prometheus.CounterVec
	controllerLatency  *prometheus.HistogramVec
	powerRequests      *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		controllerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "requests_total",
			Help:      "Requests sent to the UniFi controller by operation and outcome.",
		}, []string{"operation", "outcome"}),
		controllerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "request_duration_seconds",
			Help:      "Latency of UniFi controller requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		powerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "power_requests_total",
			Help:      "Power operations handled, labelled by result kind.",
		}, []string{"operation", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by path and status code.",
		}, []string{"path", "code"}),
	}
}

// ObserveController records one controller call that started at start.
func (m *Metrics) ObserveController(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.controllerRequests.WithLabelValues(op, outcome).Inc()
	m.controllerLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObservePower records the result of a power operation. result is "ok" or an error kind.
func (m *Metrics) ObservePower(op, result string) {
	if m == nil {
		return
	}
	m.powerRequests.WithLabelValues(op, result).Inc()
}

// ObserveHTTP records a served HTTP request.
func (m *Metrics) ObserveHTTP(path, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, code).Inc()
}
