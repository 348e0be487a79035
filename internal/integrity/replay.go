// Package integrity derives canonical proposal state from the workflow log,
// detects drift against stored state, and repairs it.
package integrity

import "canon/internal/proposal/models"

// Replay folds an ordered transition sequence into the canonical state.
//
// Input must already be sorted ascending by (occurred_at, seq); Replay does
// not sort. The fold seeds with the initial workflow state and each event
// with a non-empty ToState replaces the running state. A malformed entry
// (empty ToState) is skipped so one bad record never aborts replay of the
// rest. Pure and deterministic.
func Replay(events []models.TransitionEvent) models.State {
	state := models.StateInitial
	for _, event := range events {
		if event.ToState != "" {
			state = event.ToState
		}
	}
	return state
}
