package integrity

import (
	"context"
	"fmt"
	"log/slog"

	integritymetrics "canon/internal/integrity/metrics"
	"canon/internal/proposal/models"
	"canon/internal/proposal/ports"
	audit "canon/pkg/platform/audit"
	"canon/pkg/platform/audit/emitter"
	"canon/pkg/requestcontext"
)

// Corrector overwrites drifted stored states with their computed canonical
// value. Failures are collected per item and never stop the batch; partial
// success is the expected outcome. Correction is idempotent: once a state
// converges, a later run no longer flags it.
type Corrector struct {
	proposals ports.ProposalStore
	emitter   *emitter.Emitter
	logger    *slog.Logger
	metrics   *integritymetrics.Metrics
}

type CorrectorOption func(*Corrector)

func WithCorrectorLogger(logger *slog.Logger) CorrectorOption {
	return func(c *Corrector) { c.logger = logger }
}

func WithCorrectorMetrics(m *integritymetrics.Metrics) CorrectorOption {
	return func(c *Corrector) { c.metrics = m }
}

// WithCorrectorEmitter enables a STATE_CORRECTED audit event per successful
// correction.
func WithCorrectorEmitter(e *emitter.Emitter) CorrectorOption {
	return func(c *Corrector) { c.emitter = e }
}

func NewCorrector(proposals ports.ProposalStore, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		proposals: proposals,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Correct applies the computed state for each mismatch. Every item is
// attempted; per-item failures become human-readable entries in
// Summary.Errors. Corrected+Failed==Total always holds.
func (c *Corrector) Correct(ctx context.Context, mismatches []models.MismatchRecord) *models.CorrectionSummary {
	c.logger.InfoContext(ctx, "starting state auto-correction", "count", len(mismatches))

	summary := &models.CorrectionSummary{
		Total:  len(mismatches),
		Errors: []string{},
	}

	for _, mismatch := range mismatches {
		if err := c.proposals.SetState(ctx, mismatch.ProposalID, mismatch.ComputedState); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("failed to correct %s: %v", mismatch.ProposalCode, err))
			c.logger.ErrorContext(ctx, "state correction failed",
				"proposal_code", mismatch.ProposalCode,
				"error", err,
			)
			continue
		}

		summary.Corrected++
		c.logger.DebugContext(ctx, "state corrected",
			"proposal_code", mismatch.ProposalCode,
			"from", mismatch.CurrentState,
			"to", mismatch.ComputedState,
		)

		if c.emitter != nil {
			c.emitter.Emit(ctx, audit.Event{
				Action:     audit.ActionStateCorrected,
				ActorID:    requestcontext.ActorID(ctx),
				EntityType: audit.EntityTypeProposal,
				EntityID:   mismatch.ProposalID,
				Metadata: map[string]any{
					"proposalCode": mismatch.ProposalCode,
					"fromState":    string(mismatch.CurrentState),
					"toState":      string(mismatch.ComputedState),
				},
				RequestID: requestcontext.RequestID(ctx),
			})
		}
	}

	if c.metrics != nil {
		c.metrics.ObserveCorrection(summary.Corrected, summary.Failed)
	}
	c.logger.InfoContext(ctx, "state auto-correction complete",
		"total", summary.Total,
		"corrected", summary.Corrected,
		"failed", summary.Failed,
	)
	return summary
}
