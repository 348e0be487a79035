package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the restore module.
type Metrics struct {
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		JobsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_restore_jobs_started_total",
			Help: "Total restore jobs started",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_restore_jobs_completed_total",
			Help: "Total restore jobs that completed successfully",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_restore_jobs_failed_total",
			Help: "Total restore jobs that failed",
		}),
	}
}

func (m *Metrics) IncrementStarted() { m.JobsStarted.Inc() }

func (m *Metrics) IncrementCompleted() { m.JobsCompleted.Inc() }

func (m *Metrics) IncrementFailed() { m.JobsFailed.Inc() }
