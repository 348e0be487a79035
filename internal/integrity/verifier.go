package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	integritymetrics "canon/internal/integrity/metrics"
	"canon/internal/proposal/models"
	"canon/internal/proposal/ports"
	"canon/internal/storage"
	"canon/pkg/requestcontext"
)

// Verifier compares every proposal's stored state to the state implied by
// its transition log. Read-only; safe to run at any time, including
// alongside business traffic. A mismatch observed mid-transition is a false
// positive that the next run clears.
type Verifier struct {
	proposals   ports.ProposalStore
	logs        ports.TransitionLogStore
	logger      *slog.Logger
	metrics     *integritymetrics.Metrics
	parallelism int
}

type VerifierOption func(*Verifier)

func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = logger }
}

func WithVerifierMetrics(m *integritymetrics.Metrics) VerifierOption {
	return func(v *Verifier) { v.metrics = m }
}

// WithParallelism bounds concurrent per-proposal checks. Values below 2 keep
// the sequential default. Under parallel verification the report's mismatch
// order is unspecified.
func WithParallelism(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 1 {
			v.parallelism = n
		}
	}
}

func NewVerifier(proposals ports.ProposalStore, logs ports.TransitionLogStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		proposals:   proposals,
		logs:        logs,
		logger:      slog.Default(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify computes the canonical state of every proposal and reports those
// whose stored state disagrees. No mutation occurs.
func (v *Verifier) Verify(ctx context.Context) (*models.VerificationReport, error) {
	v.logger.InfoContext(ctx, "starting state integrity verification")

	proposals, err := v.proposals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}

	report := &models.VerificationReport{
		Total:      len(proposals),
		Mismatches: []models.MismatchRecord{},
		VerifiedAt: requestcontext.Now(ctx),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.parallelism)

	for _, proposal := range proposals {
		g.Go(func() error {
			mismatch, err := v.check(gctx, proposal)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if mismatch == nil {
				report.MatchedCount++
			} else {
				report.Mismatches = append(report.Mismatches, *mismatch)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.MismatchedCount = len(report.Mismatches)

	if v.metrics != nil {
		v.metrics.ObserveVerification(report.Total, report.MismatchedCount)
	}
	v.logger.InfoContext(ctx, "state integrity verification complete",
		"total", report.Total,
		"matched", report.MatchedCount,
		"mismatched", report.MismatchedCount,
	)
	return report, nil
}

// check replays one proposal's log and returns a mismatch record when the
// stored state diverges, nil when it matches.
func (v *Verifier) check(ctx context.Context, proposal models.Proposal) (*models.MismatchRecord, error) {
	events, err := v.logs.ListByProposal(ctx, proposal.ID)
	if err != nil {
		return nil, fmt.Errorf("list transitions for %s: %w", proposal.Code, err)
	}

	computed := Replay(events)
	if computed == proposal.State {
		return nil, nil
	}

	return &models.MismatchRecord{
		ProposalID:    proposal.ID,
		ProposalCode:  proposal.Code,
		CurrentState:  proposal.State,
		ComputedState: computed,
		LastLog:       v.lastLog(ctx, proposal.ID),
	}, nil
}

// lastLog fetches the most recent transition for operator context. A
// proposal with an empty log gets a synthetic CREATE entry so the report is
// always well-formed.
func (v *Verifier) lastLog(ctx context.Context, proposalID string) models.LastLogSnapshot {
	latest, err := v.logs.Latest(ctx, proposalID)
	if err != nil || latest == nil {
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			v.logger.WarnContext(ctx, "failed to load latest transition",
				"proposal_id", proposalID, "error", err)
		}
		return models.LastLogSnapshot{
			Action:    "CREATE",
			ToState:   models.StateInitial,
			Timestamp: requestcontext.Now(ctx),
		}
	}
	return models.LastLogSnapshot{
		Action:    latest.Action,
		ToState:   latest.ToState,
		Timestamp: latest.OccurredAt,
	}
}
