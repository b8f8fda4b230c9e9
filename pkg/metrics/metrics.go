// Package metrics exposes Prometheus instrumentation for authorization
// decisions and an optional standalone metrics server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthzMetrics tracks Prometheus metrics for authorization decisions.
//
// All metrics use the "sciauthz_" prefix. Methods handle nil receiver
// gracefully, so a nil *AuthzMetrics acts as a no-op when metrics are
// disabled.
type AuthzMetrics struct {
	// DecisionTotal counts authorization decisions.
	// Labels: operation=[query, grant, revoke, approve], result=[allowed, denied]
	DecisionTotal *prometheus.CounterVec

	// RequestDuration tracks HTTP request handling time by route.
	RequestDuration *prometheus.HistogramVec
}

var (
	authzMetricsOnce     sync.Once
	authzMetricsInstance *AuthzMetrics
)

// NewAuthzMetrics creates and registers the authorization metrics.
//
// If registerer is nil, prometheus.DefaultRegisterer is used. Registration
// happens exactly once; later calls return the same instance.
func NewAuthzMetrics(registerer prometheus.Registerer) *AuthzMetrics {
	authzMetricsOnce.Do(func() {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}

		m := &AuthzMetrics{
			DecisionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sciauthz_decision_total",
					Help: "Total authorization decisions by operation and result",
				},
				[]string{"operation", "result"},
			),
			RequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "sciauthz_request_duration_seconds",
					Help:    "HTTP request handling time by route",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
		}

		registerer.MustRegister(m.DecisionTotal, m.RequestDuration)
		authzMetricsInstance = m
	})
	return authzMetricsInstance
}

// RecordDecision counts one authorization decision. Safe on a nil receiver.
func (m *AuthzMetrics) RecordDecision(operation string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.DecisionTotal.WithLabelValues(operation, result).Inc()
}

// ObserveRequest records the handling time of one HTTP request.
// Safe on a nil receiver.
func (m *AuthzMetrics) ObserveRequest(route string, seconds float64) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}
