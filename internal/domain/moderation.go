package domain

type ModerationAction string

const (
	ActionSubmit         ModerationAction = "submit"
	ActionResubmit       ModerationAction = "resubmit"
	ActionApprove        ModerationAction = "approve"
	ActionReject         ModerationAction = "reject"
	ActionRequestChanges ModerationAction = "request_changes"
)

func ParseModerationAction(s string) (ModerationAction, error) {
	switch a := ModerationAction(s); a {
	case ActionSubmit, ActionResubmit, ActionApprove, ActionReject, ActionRequestChanges:
		return a, nil
	}
	return "", Invalid("unknown moderation action %q", s)
}

// NotesRequired reports whether the action refuses empty reviewer notes.
func (a ModerationAction) NotesRequired() bool {
	return a == ActionReject || a == ActionRequestChanges
}

// ReviewerAction reports whether the action is taken by a reviewer rather than the author.
func (a ModerationAction) ReviewerAction() bool {
	return a == ActionApprove || a == ActionReject || a == ActionRequestChanges
}

type transitionKey struct {
	from   SubmissionStatus
	action ModerationAction
}

var transitions = map[transitionKey]SubmissionStatus{
	{SubmissionStatusDraft, ActionSubmit}:              SubmissionStatusPending,
	{SubmissionStatusPending, ActionApprove}:           SubmissionStatusApproved,
	{SubmissionStatusPending, ActionReject}:            SubmissionStatusRejected,
	{SubmissionStatusPending, ActionRequestChanges}:    SubmissionStatusChangesRequested,
	{SubmissionStatusChangesRequested, ActionResubmit}: SubmissionStatusPending,
}

// NextStatus applies the moderation transition table. Approval lands on
// PUBLISHED instead of APPROVED when the category publishes on approve.
func NextStatus(from SubmissionStatus, action ModerationAction, publishOnApprove bool) (SubmissionStatus, error) {
	to, ok := transitions[transitionKey{from, action}]
	if !ok {
		return from, ErrInvalidTransition
	}
	if to == SubmissionStatusApproved && publishOnApprove {
		return SubmissionStatusPublished, nil
	}
	return to, nil
}
