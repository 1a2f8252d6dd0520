package hook

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/courierhq/courier/job"
)

// Compile-time interface checks.
var (
	_ Hook              = (*MetricsHook)(nil)
	_ Dispatched        = (*MetricsHook)(nil)
	_ Completed         = (*MetricsHook)(nil)
	_ Retrying          = (*MetricsHook)(nil)
	_ Rejected          = (*MetricsHook)(nil)
	_ ContractViolation = (*MetricsHook)(nil)
)

// MetricsHook records lifecycle counters and handler latency with
// Prometheus. Register it on both sides to track dispatch rates,
// completion latency, retry pressure, and dead-letter volume.
type MetricsHook struct {
	dispatched *prometheus.CounterVec
	completed  *prometheus.CounterVec
	retried    *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetricsHook creates a metrics hook registered on the default
// Prometheus registerer.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWith(prometheus.DefaultRegisterer)
}

// NewMetricsHookWith creates a metrics hook on the given registerer.
func NewMetricsHookWith(reg prometheus.Registerer) *MetricsHook {
	m := &MetricsHook{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_envelopes_dispatched_total",
			Help: "Total envelopes accepted by the transport.",
		}, []string{"handler", "queue"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_envelopes_completed_total",
			Help: "Total envelopes whose handler finished successfully.",
		}, []string{"handler", "queue"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_envelopes_retried_total",
			Help: "Total envelopes requeued after a handler failure.",
		}, []string{"handler", "queue"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_envelopes_rejected_total",
			Help: "Total envelopes terminally rejected to the dead letter stream.",
		}, []string{"handler", "queue"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_contract_violations_total",
			Help: "Total delivered bodies that could not be decoded.",
		}, []string{"queue"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courier_handler_duration_seconds",
			Help:    "Handler execution time for successful envelopes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler", "queue"}),
	}

	reg.MustRegister(m.dispatched, m.completed, m.retried, m.rejected, m.violations, m.duration)
	return m
}

func (m *MetricsHook) Name() string { return "metrics" }

func (m *MetricsHook) OnDispatched(_ context.Context, env *job.Envelope) error {
	m.dispatched.WithLabelValues(env.Handler, env.Queue).Inc()
	return nil
}

func (m *MetricsHook) OnCompleted(_ context.Context, env *job.Envelope, elapsed time.Duration) error {
	m.completed.WithLabelValues(env.Handler, env.Queue).Inc()
	m.duration.WithLabelValues(env.Handler, env.Queue).Observe(elapsed.Seconds())
	return nil
}

func (m *MetricsHook) OnRetrying(_ context.Context, env *job.Envelope, _ error, _ time.Duration) error {
	m.retried.WithLabelValues(env.Handler, env.Queue).Inc()
	return nil
}

func (m *MetricsHook) OnRejected(_ context.Context, env *job.Envelope, _ error) error {
	m.rejected.WithLabelValues(env.Handler, env.Queue).Inc()
	return nil
}

func (m *MetricsHook) OnContractViolation(_ context.Context, queue string, _ []byte, _ error) error {
	m.violations.WithLabelValues(queue).Inc()
	return nil
}
