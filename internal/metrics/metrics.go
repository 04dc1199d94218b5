// ABOUTME: Prometheus collectors for store operations and change notifications
// ABOUTME: All methods are nil-safe so components can run without metrics wired

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reqstore"

// Metrics groups the collectors shared by the store and the event broadcaster.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	operations       *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec
	events           *prometheus.CounterVec
	evictions        prometheus.Counter
	cleanupFailures  prometheus.Counter
	reconciledModels *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid global state.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Store operations by model, operation and result.",
		}, []string{"model", "op", "result"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Latency of store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"model", "op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Change notifications published by channel and model.",
		}, []string{"channel", "model"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriber_evictions_total",
			Help:      "Subscribers dropped because their buffer was full.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "body_cleanup_failures_total",
			Help:      "Response body files that could not be removed.",
		}),
		reconciledModels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_models_total",
			Help:      "Pending rows marked cancelled at startup.",
		}, []string{"model"}),
	}
	reg.MustRegister(m.operations, m.opDuration, m.events, m.evictions, m.cleanupFailures, m.reconciledModels)
	return m
}

// ObserveOp records the outcome and latency of one store operation.
func (m *Metrics) ObserveOp(model, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(model, op, result).Inc()
	m.opDuration.WithLabelValues(model, op).Observe(d.Seconds())
}

// EventPublished counts one notification on channel for model.
func (m *Metrics) EventPublished(channel, model string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(channel, model).Inc()
}

// SubscriberEvicted counts a subscriber dropped for falling behind.
func (m *Metrics) SubscriberEvicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

// BodyCleanupFailed counts a response body that could not be removed.
func (m *Metrics) BodyCleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

// Reconciled adds n cancelled rows for model.
func (m *Metrics) Reconciled(model string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.reconciledModels.WithLabelValues(model).Add(float64(n))
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
