package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RemoteCallMetrics records calls made to the storefront REST backend.
type RemoteCallMetrics struct {
	duration *prometheus.HistogramVec
	calls    *prometheus.CounterVec
	merged   *prometheus.CounterVec
}

// NewRemoteCallMetrics registers the backend call metrics on the provided registerer.
func NewRemoteCallMetrics(reg prometheus.Registerer) *RemoteCallMetrics {
	if reg == nil {
		return &RemoteCallMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_backend_call_duration_seconds",
		Help:    "Duration of storefront backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_backend_calls_total",
		Help: "Storefront backend calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	merged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_merge_items_total",
		Help: "Anonymous cart items appended to a user cart on login, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, calls, merged)
	return &RemoteCallMetrics{
		duration: duration,
		calls:    calls,
		merged:   merged,
	}
}

// Observe records the outcome and latency of one backend call.
func (m *RemoteCallMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.calls == nil {
		return
	}
	op := normalizeLabel(operation)
	m.duration.WithLabelValues(op).Observe(time.Since(started).Seconds())
	m.calls.WithLabelValues(op, outcomeOf(err)).Inc()
}

// IncMerged counts one merge-on-login append attempt.
func (m *RemoteCallMetrics) IncMerged(err error) {
	if m == nil || m.merged == nil {
		return
	}
	m.merged.WithLabelValues(outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func normalizeLabel(op string) string {
	if op == "" {
		return "unknown"
	}
	return op
}
