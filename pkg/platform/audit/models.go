// Package audit defines the audit event model and the sink contract. Events
// are append-only records of what happened; delivery concerns (retry,
// backoff, batching) live in the emitter subpackage and storage concerns in
// the store subpackages.
package audit

import (
	"context"
	"time"

	"canon/internal/proposal/models"
)

// Event is one audit record. Keep it transport-agnostic so stores and sinks
// can fan out.
type Event struct {
	ID         string         `json:"id"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actorId"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Store is the audit sink: a single append call, no batching contract.
// Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Filter narrows an audit query. Zero values mean "any".
type Filter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     Action
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Querier is implemented by stores that support operator-facing reads.
// The emitter never needs it.
type Querier interface {
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// TransitionResult is the standard output of a workflow state transition,
// produced by business code and consumed by the emitter to build the audit
// record. Extra carries caller-specific fields merged verbatim into metadata.
type TransitionResult struct {
	ProposalID             string
	ProposalCode           string
	FromState              models.State
	ToState                models.State
	Action                 string
	HolderUnit             string
	HolderUser             string
	SLAStartDate           *time.Time
	SLADeadline            *time.Time
	CouncilID              string
	ReturnTargetState      models.State
	ReturnTargetHolderUnit string
	Reason                 string
	Extra                  map[string]any
}

// Context carries the acting user and request attribution for an audit event.
type Context struct {
	ActorID   string
	IP        string
	UserAgent string
	RequestID string
}

// EntityTypeProposal is the entity type recorded for workflow transitions.
const EntityTypeProposal = "Proposal"

// BuildEvent normalizes a transition result into an audit event.
//
// Metadata always includes the proposal code, from/to states and holder
// unit. Optional fields are added only when present so the map stays
// minimal; Extra entries are merged in verbatim. SLA dates are serialized as
// RFC3339.
func BuildEvent(result TransitionResult, actx Context) Event {
	metadata := map[string]any{
		"proposalCode": result.ProposalCode,
		"fromState":    string(result.FromState),
		"toState":      string(result.ToState),
		"holderUnit":   result.HolderUnit,
	}
	if result.HolderUser != "" {
		metadata["holderUser"] = result.HolderUser
	}
	if result.SLAStartDate != nil {
		metadata["slaStartDate"] = result.SLAStartDate.Format(time.RFC3339)
	}
	if result.SLADeadline != nil {
		metadata["slaDeadline"] = result.SLADeadline.Format(time.RFC3339)
	}
	if result.CouncilID != "" {
		metadata["councilId"] = result.CouncilID
	}
	if result.ReturnTargetState != "" {
		metadata["returnTargetState"] = string(result.ReturnTargetState)
	}
	if result.ReturnTargetHolderUnit != "" {
		metadata["returnTargetHolderUnit"] = result.ReturnTargetHolderUnit
	}
	if result.Reason != "" {
		metadata["reason"] = result.Reason
	}
	for k, v := range result.Extra {
		metadata[k] = v
	}

	return Event{
		Action:     MapAction(result.Action),
		ActorID:    actx.ActorID,
		EntityType: EntityTypeProposal,
		EntityID:   result.ProposalID,
		Metadata:   metadata,
		IP:         actx.IP,
		UserAgent:  actx.UserAgent,
		RequestID:  actx.RequestID,
	}
}
