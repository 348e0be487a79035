// Package ports declares the narrow store contracts the reconciliation core
// consumes. Implementations live in internal/proposal/store.
package ports

import (
	"context"

	"canon/internal/proposal/models"
)

// ProposalStore reads and conditionally rewrites the stored state of
// proposals. The reconciliation core never creates or deletes proposals.
type ProposalStore interface {
	Get(ctx context.Context, id string) (*models.Proposal, error)
	List(ctx context.Context) ([]models.Proposal, error)
	SetState(ctx context.Context, id string, state models.State) error
	Count(ctx context.Context) (int, error)
}

// TransitionLogStore is the append-only workflow log. ListByProposal returns
// events ordered by (occurred_at, seq) ascending; that ordered sequence is
// the source of truth for a proposal's canonical state.
type TransitionLogStore interface {
	Append(ctx context.Context, event *models.TransitionEvent) error
	ListByProposal(ctx context.Context, proposalID string) ([]models.TransitionEvent, error)
	Latest(ctx context.Context, proposalID string) (*models.TransitionEvent, error)
}
