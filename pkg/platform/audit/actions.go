package audit

import "strings"

// Action tags an audit event. The set is closed for first-class workflow and
// recovery actions; raw action strings that have not been promoted yet are
// carried as a synthesized WORKFLOW_<raw> value so they stay traceable.
type Action string

const (
	// Proposal workflow actions
	ActionProposalSubmit   Action = "PROPOSAL_SUBMIT"
	ActionProposalResubmit Action = "PROPOSAL_RESUBMIT"
	ActionProposalReject   Action = "PROPOSAL_REJECT"
	ActionProposalCancel   Action = "PROPOSAL_CANCEL"
	ActionProposalWithdraw Action = "PROPOSAL_WITHDRAW"
	ActionProposalPause    Action = "PROPOSAL_PAUSE"
	ActionProposalResume   Action = "PROPOSAL_RESUME"
	ActionFacultyReturn    Action = "FACULTY_RETURN"
	ActionFacultyAccept    Action = "FACULTY_ACCEPT"
	ActionSchoolAccept     Action = "SCHOOL_ACCEPT"

	// Backup and recovery actions
	ActionBackupUpload      Action = "BACKUP_UPLOAD"
	ActionBackupDelete      Action = "BACKUP_DELETE"
	ActionRestoreStarted    Action = "RESTORE_STARTED"
	ActionRestoreCompleted  Action = "RESTORE_COMPLETED"
	ActionRestoreFailed     Action = "RESTORE_FAILED"
	ActionStateCorrected    Action = "STATE_CORRECTED"
	ActionStateVerification Action = "STATE_VERIFICATION"
)

// workflowPrefix marks synthesized tags for actions without a first-class
// constant yet.
const workflowPrefix = "WORKFLOW_"

var knownActions = map[Action]bool{
	ActionProposalSubmit:    true,
	ActionProposalResubmit:  true,
	ActionProposalReject:    true,
	ActionProposalCancel:    true,
	ActionProposalWithdraw:  true,
	ActionProposalPause:     true,
	ActionProposalResume:    true,
	ActionFacultyReturn:     true,
	ActionFacultyAccept:     true,
	ActionSchoolAccept:      true,
	ActionBackupUpload:      true,
	ActionBackupDelete:      true,
	ActionRestoreStarted:    true,
	ActionRestoreCompleted:  true,
	ActionRestoreFailed:     true,
	ActionStateCorrected:    true,
	ActionStateVerification: true,
}

// verbMap translates bare workflow verbs emitted by business code to their
// canonical tags.
var verbMap = map[string]Action{
	"SUBMIT":   ActionProposalSubmit,
	"RESUBMIT": ActionProposalResubmit,
	"APPROVE":  ActionProposalSubmit, // generic approve
	"RETURN":   ActionFacultyReturn,
	"REJECT":   ActionProposalReject,
	"CANCEL":   ActionProposalCancel,
	"WITHDRAW": ActionProposalWithdraw,
	"PAUSE":    ActionProposalPause,
	"RESUME":   ActionProposalResume,
	"ACCEPT":   ActionFacultyAccept,
}

// Known reports whether the action is a first-class tag.
func (a Action) Known() bool { return knownActions[a] }

// MapAction normalizes a raw action string to an Action tag. Known tags pass
// through verbatim, common workflow verbs map to their canonical tag, and
// anything else is prefixed with WORKFLOW_ so it never loses traceability.
func MapAction(raw string) Action {
	if knownActions[Action(raw)] {
		return Action(raw)
	}
	if mapped, ok := verbMap[strings.ToUpper(raw)]; ok {
		return mapped
	}
	return Action(workflowPrefix + raw)
}
