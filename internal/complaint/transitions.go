package complaint

import "civicshield/backend/internal/models"

// step names one edge of the workflow.
type step string

const (
	stepBeginReview   step = "begin review of"
	stepVerify        step = "verify"
	stepRouteToAdmin  step = "route to admin"
	stepAIReject      step = "reject after analysis"
	stepApprove       step = "approve"
	stepForward       step = "forward to authority"
	stepAdminReject   step = "reject"
	stepRespond       step = "respond to"
	stepResolve       step = "resolve"
	stepNotResolve    step = "mark as not resolved"
	stepAutoEscalate  step = "escalate"
	stepFileLawsuit   step = "file a lawsuit for"
	stepAnnotateAdmin step = "request user data for"
	stepAnnotateUser  step = "update consent for"
)

type transition struct {
	from []models.Status
	to   models.Status
	// keep leaves the status unchanged and only appends an entry.
	keep bool
}

var transitions = map[step]transition{
	stepBeginReview:  {from: []models.Status{models.StatusSubmitted}, to: models.StatusAIReview},
	stepVerify:       {from: []models.Status{models.StatusAIReview}, to: models.StatusVerified},
	stepRouteToAdmin: {from: []models.Status{models.StatusVerified}, to: models.StatusSentToAdmin},
	stepAIReject:     {from: []models.Status{models.StatusAIReview}, to: models.StatusAIRejected},
	stepApprove:      {from: []models.Status{models.StatusSentToAdmin}, to: models.StatusAdminApproved},
	stepForward:      {from: []models.Status{models.StatusAdminApproved}, to: models.StatusSentToAuthority},
	stepAdminReject:  {from: []models.Status{models.StatusSentToAdmin}, to: models.StatusAdminRejected},
	stepRespond: {
		from: []models.Status{models.StatusSentToAuthority, models.StatusUserNotResolved},
		to:   models.StatusReplied,
	},
	stepResolve:      {from: []models.Status{models.StatusReplied}, to: models.StatusUserResolved},
	stepNotResolve:   {from: []models.Status{models.StatusReplied}, to: models.StatusUserNotResolved},
	stepAutoEscalate: {from: []models.Status{models.StatusSentToAuthority}, to: models.StatusEscalated},
	stepFileLawsuit: {
		from: []models.Status{
			models.StatusSentToAuthority,
			models.StatusEscalated,
			models.StatusUserNotResolved,
			models.StatusReplied,
		},
		to: models.StatusLawsuitFiled,
	},
	stepAnnotateAdmin: {keep: true},
	stepAnnotateUser:  {keep: true},
}

// allowed reports whether s may be applied to a complaint in status from.
// Annotations are accepted in any status.
func (s step) allowed(from models.Status) bool {
	t, ok := transitions[s]
	if !ok {
		return false
	}
	if t.keep {
		return true
	}
	return from.In(t.from...)
}

// target returns the status after s, given the current status.
func (s step) target(current models.Status) models.Status {
	t := transitions[s]
	if t.keep {
		return current
	}
	return t.to
}
