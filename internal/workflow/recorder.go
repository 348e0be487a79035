// Package workflow records state transitions: append to the log, update the
// stored state, emit the audit event. Which transitions are legal is decided
// by the business modules that call it; the recorder only does the
// bookkeeping that keeps the log, the stored state and the audit trail in
// agreement.
package workflow

import (
	"context"
	"log/slog"

	"canon/internal/proposal/models"
	"canon/internal/proposal/ports"
	dErrors "canon/pkg/domainerrors"
	audit "canon/pkg/platform/audit"
	"canon/pkg/platform/audit/emitter"
	"canon/pkg/requestcontext"
)

// Recorder persists one workflow transition across the three stores.
type Recorder struct {
	proposals ports.ProposalStore
	logs      ports.TransitionLogStore
	emitter   *emitter.Emitter
	logger    *slog.Logger
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func NewRecorder(proposals ports.ProposalStore, logs ports.TransitionLogStore, auditEmitter *emitter.Emitter, opts ...Option) *Recorder {
	r := &Recorder{
		proposals: proposals,
		logs:      logs,
		emitter:   auditEmitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends the transition event, rewrites the stored state, and emits
// the audit record. Store failures are returned; audit delivery problems
// never fail the call (the emitter retries and drops internally).
//
// The log append comes first: if the state write then fails, the log holds
// the truth and the next verification run repairs the stored state.
func (r *Recorder) Record(ctx context.Context, result audit.TransitionResult, actx audit.Context) error {
	event := &models.TransitionEvent{
		ProposalID: result.ProposalID,
		Action:     result.Action,
		FromState:  result.FromState,
		ToState:    result.ToState,
		ActorID:    actx.ActorID,
		ActorName:  requestcontext.ActorName(ctx),
		Comment:    result.Reason,
		OccurredAt: requestcontext.Now(ctx),
	}
	if err := r.logs.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append transition log")
	}

	if err := r.proposals.SetState(ctx, result.ProposalID, result.ToState); err != nil {
		r.logger.ErrorContext(ctx, "state write failed after log append; verifier will reconcile",
			"proposal_id", result.ProposalID,
			"to_state", result.ToState,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update proposal state")
	}

	r.emitter.EmitTransition(ctx, result, actx)
	return nil
}

// RecordBatch records a list of transitions, continuing past per-item store
// failures, then emits the audit events for the successful ones as a batch.
func (r *Recorder) RecordBatch(ctx context.Context, results []audit.TransitionResult, actx audit.Context) []error {
	var errs []error
	succeeded := make([]audit.TransitionResult, 0, len(results))
	for _, result := range results {
		event := &models.TransitionEvent{
			ProposalID: result.ProposalID,
			Action:     result.Action,
			FromState:  result.FromState,
			ToState:    result.ToState,
			ActorID:    actx.ActorID,
			OccurredAt: requestcontext.Now(ctx),
		}
		if err := r.logs.Append(ctx, event); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.proposals.SetState(ctx, result.ProposalID, result.ToState); err != nil {
			errs = append(errs, err)
			continue
		}
		succeeded = append(succeeded, result)
	}
	r.emitter.EmitBatch(ctx, succeeded, actx)
	return errs
}
