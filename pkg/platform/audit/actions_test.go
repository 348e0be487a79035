package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"canon/internal/proposal/models"
)

func TestMapAction(t *testing.T) {
	tests := []struct {
		raw  string
		want Action
	}{
		{"PROPOSAL_SUBMIT", ActionProposalSubmit},
		{"RESTORE_FAILED", ActionRestoreFailed},
		{"SUBMIT", ActionProposalSubmit},
		{"submit", ActionProposalSubmit},
		{"APPROVE", ActionProposalSubmit},
		{"RETURN", ActionFacultyReturn},
		{"REJECT", ActionProposalReject},
		{"CANCEL", ActionProposalCancel},
		{"WITHDRAW", ActionProposalWithdraw},
		{"PAUSE", ActionProposalPause},
		{"RESUME", ActionProposalResume},
		{"ACCEPT", ActionFacultyAccept},
		{"ASSIGN_COUNCIL", Action("WORKFLOW_ASSIGN_COUNCIL")},
		{"", Action("WORKFLOW_")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapAction(tt.raw))
		})
	}
}

func TestBuildEvent_MinimalMetadata(t *testing.T) {
	event := BuildEvent(TransitionResult{
		ProposalID:   "p1",
		ProposalCode: "DT-001",
		FromState:    models.StateDraft,
		ToState:      models.StateFacultyReview,
		Action:       "SUBMIT",
		HolderUnit:   "faculty-7",
	}, Context{ActorID: "u1", IP: "10.0.0.1", RequestID: "req-1"})

	assert.Equal(t, ActionProposalSubmit, event.Action)
	assert.Equal(t, "u1", event.ActorID)
	assert.Equal(t, EntityTypeProposal, event.EntityType)
	assert.Equal(t, "p1", event.EntityID)
	assert.Equal(t, "10.0.0.1", event.IP)
	assert.Equal(t, "req-1", event.RequestID)

	// Optional fields stay out of the map when absent.
	assert.Equal(t, map[string]any{
		"proposalCode": "DT-001",
		"fromState":    "DRAFT",
		"toState":      "FACULTY_REVIEW",
		"holderUnit":   "faculty-7",
	}, event.Metadata)
}

func TestBuildEvent_OptionalAndExtraFields(t *testing.T) {
	slaStart := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	slaEnd := slaStart.AddDate(0, 0, 30)

	event := BuildEvent(TransitionResult{
		ProposalID:             "p2",
		ProposalCode:           "DT-002",
		FromState:              models.StateFacultyReview,
		ToState:                models.StateReturned,
		Action:                 "RETURN",
		HolderUnit:             "faculty-7",
		HolderUser:             "reviewer-3",
		SLAStartDate:           &slaStart,
		SLADeadline:            &slaEnd,
		CouncilID:              "council-1",
		ReturnTargetState:      models.StateDraft,
		ReturnTargetHolderUnit: "owner-unit",
		Reason:                 "missing budget sheet",
		Extra:                  map[string]any{"attachmentCount": 2},
	}, Context{ActorID: "u2"})

	assert.Equal(t, ActionFacultyReturn, event.Action)
	assert.Equal(t, "reviewer-3", event.Metadata["holderUser"])
	assert.Equal(t, "2025-03-01T08:00:00Z", event.Metadata["slaStartDate"])
	assert.Equal(t, "2025-03-31T08:00:00Z", event.Metadata["slaDeadline"])
	assert.Equal(t, "council-1", event.Metadata["councilId"])
	assert.Equal(t, "DRAFT", event.Metadata["returnTargetState"])
	assert.Equal(t, "owner-unit", event.Metadata["returnTargetHolderUnit"])
	assert.Equal(t, "missing budget sheet", event.Metadata["reason"])
	assert.Equal(t, 2, event.Metadata["attachmentCount"])
}
