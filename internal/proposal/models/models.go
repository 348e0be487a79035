// Package models holds the proposal domain types shared by stores, the
// integrity services, and the transport layer.
package models

import "time"

// State is a proposal workflow state. The set is open on the read side:
// replay must tolerate states written by newer deployments, so unknown
// values round-trip verbatim instead of failing.
type State string

const (
	StateDraft         State = "DRAFT"
	StateFacultyReview State = "FACULTY_REVIEW"
	StateSchoolReview  State = "SCHOOL_REVIEW"
	StateCouncilReview State = "COUNCIL_REVIEW"
	StateApproved      State = "APPROVED"
	StateInProgress    State = "IN_PROGRESS"
	StatePaused        State = "PAUSED"
	StateCompleted     State = "COMPLETED"
	StateAccepted      State = "ACCEPTED"
	StateReturned      State = "RETURNED"
	StateRejected      State = "REJECTED"
	StateCancelled     State = "CANCELLED"
	StateWithdrawn     State = "WITHDRAWN"
)

// StateInitial seeds every replay. A proposal with no transition history is
// in DRAFT by definition.
const StateInitial = StateDraft

// Proposal is the tracked entity. Only ID, Code and State matter to the
// reconciliation core; everything else about a proposal lives with the
// business modules that own it.
type Proposal struct {
	ID    string
	Code  string
	State State
}

// TransitionEvent is one append-only record of the workflow log. Ordered per
// proposal by (OccurredAt, Seq) ascending; Seq is assigned at append time and
// breaks timestamp ties. Immutable once written.
type TransitionEvent struct {
	ID         string
	ProposalID string
	Action     string
	FromState  State
	ToState    State
	ActorID    string
	ActorName  string
	Comment    string
	OccurredAt time.Time
	Seq        int64
}

// LastLogSnapshot captures the most recent transition of a mismatched
// proposal so an operator can see where the stored state came from.
type LastLogSnapshot struct {
	Action    string    `json:"action"`
	ToState   State     `json:"toState"`
	Timestamp time.Time `json:"timestamp"`
}

// MismatchRecord describes one proposal whose stored state disagrees with
// the state implied by its transition log. Report-only, never persisted.
type MismatchRecord struct {
	ProposalID    string          `json:"proposalId"`
	ProposalCode  string          `json:"proposalCode"`
	CurrentState  State           `json:"currentState"`
	ComputedState State           `json:"computedState"`
	LastLog       LastLogSnapshot `json:"lastLog"`
}

// VerificationReport is the outcome of one integrity sweep.
type VerificationReport struct {
	Total           int              `json:"total"`
	MatchedCount    int              `json:"matchedCount"`
	MismatchedCount int              `json:"mismatchedCount"`
	Mismatches      []MismatchRecord `json:"mismatches"`
	VerifiedAt      time.Time        `json:"verifiedAt"`
}

// CorrectionSummary reports a bulk correction run. Corrected+Failed always
// equals Total; partial success is the expected outcome.
type CorrectionSummary struct {
	Total     int      `json:"total"`
	Corrected int      `json:"corrected"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}
