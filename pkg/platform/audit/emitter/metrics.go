package emitter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for audit delivery. Construct once at
// wiring time; promauto registers against the default registry.
type Metrics struct {
	Attempts prometheus.Counter
	Retries  prometheus.Counter
	Dropped  prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_audit_delivery_attempts_total",
			Help: "Total audit sink append attempts, including retries",
		}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_audit_delivery_retries_total",
			Help: "Total audit deliveries that were retried after a transient failure",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_audit_events_dropped_total",
			Help: "Total audit events dropped after retry exhaustion or fatal errors",
		}),
	}
}

// IncrementAttempts records one sink append attempt.
func (m *Metrics) IncrementAttempts() { m.Attempts.Inc() }

// IncrementRetries records one scheduled retry.
func (m *Metrics) IncrementRetries() { m.Retries.Inc() }

// IncrementDropped records one event lost after exhaustion.
func (m *Metrics) IncrementDropped() { m.Dropped.Inc() }
