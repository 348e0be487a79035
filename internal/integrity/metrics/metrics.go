package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the integrity module.
type Metrics struct {
	VerificationsRun    prometheus.Counter
	ProposalsVerified   prometheus.Counter
	MismatchesDetected  prometheus.Counter
	CorrectionsApplied  prometheus.Counter
	CorrectionsFailed   prometheus.Counter
	LastMismatchedCount prometheus.Gauge
}

// New creates a Metrics instance registered against the default registry.
func New() *Metrics {
	return &Metrics{
		VerificationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_integrity_verifications_total",
			Help: "Total integrity verification sweeps",
		}),
		ProposalsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_integrity_proposals_verified_total",
			Help: "Total proposals checked across all sweeps",
		}),
		MismatchesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_integrity_mismatches_total",
			Help: "Total state mismatches detected",
		}),
		CorrectionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_integrity_corrections_applied_total",
			Help: "Total stored states overwritten with their canonical value",
		}),
		CorrectionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "canon_integrity_corrections_failed_total",
			Help: "Total per-item correction failures",
		}),
		LastMismatchedCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "canon_integrity_last_mismatched",
			Help: "Mismatch count of the most recent verification sweep",
		}),
	}
}

// ObserveVerification records one completed sweep.
func (m *Metrics) ObserveVerification(total, mismatched int) {
	m.VerificationsRun.Inc()
	m.ProposalsVerified.Add(float64(total))
	m.MismatchesDetected.Add(float64(mismatched))
	m.LastMismatchedCount.Set(float64(mismatched))
}

// ObserveCorrection records one completed correction batch.
func (m *Metrics) ObserveCorrection(corrected, failed int) {
	m.CorrectionsApplied.Add(float64(corrected))
	m.CorrectionsFailed.Add(float64(failed))
}
