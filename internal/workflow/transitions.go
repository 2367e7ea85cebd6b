package workflow

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

var (
	// ErrUnknownAction is returned for actions missing from the table.
	ErrUnknownAction = errors.New("workflow: unknown action")
	// ErrForbidden means the acting role may not perform the action.
	ErrForbidden = errors.New("workflow: role not permitted")
	// ErrInvalidTransition means the manuscript is not in a state the action accepts.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
)

// Action names a workflow transition. Action names double as timeline event names.
type Action string

const (
	ActionAssignReviewer        Action = "assign-reviewer"
	ActionSubmitReview          Action = "submit-review"
	ActionRequestRevision       Action = "request-revision"
	ActionSubmitRevision        Action = "submit-revision"
	ActionAccept                Action = "accept"
	ActionReject                Action = "reject"
	ActionAssignCopyEditor      Action = "assign-copy-editor"
	ActionStartCopyEdit         Action = "start-copy-edit"
	ActionSubmitGalley          Action = "submit-galley"
	ActionCompleteCopyEdit      Action = "complete-copy-edit"
	ActionAuthorApproveCopyEdit Action = "author-approve-copy-edit"
	ActionAuthorRejectCopyEdit  Action = "author-reject-copy-edit"
	ActionConfirmCopyEdit       Action = "confirm-copy-edit"
	ActionSubmitPayment         Action = "submit-payment"
	ActionAcceptPayment         Action = "accept-payment"
	ActionRejectPayment         Action = "reject-payment"
	ActionWaivePayment          Action = "waive-payment"
	ActionMarkReady             Action = "mark-ready"
	ActionPublish               Action = "publish"
	ActionDirectPublish         Action = "direct-publish"
)

// TransitionError describes why an action was refused.
type TransitionError struct {
	Action Action
	Role   Role
	From   State
	Reason string
	Err    error
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Err, ErrForbidden) {
		return fmt.Sprintf("role %q may not %s", e.Role, e.Action)
	}
	return fmt.Sprintf("cannot %s: %s", e.Action, e.Reason)
}

func (e *TransitionError) Unwrap() error { return e.Err }

type rule struct {
	roles      []Role
	statuses   []Status
	stages     []Stage
	assignment []AssignmentStatus
	apply      func(State) State
}

var (
	editorial     = []Role{RoleEditor, RoleAdmin}
	paymentStates = []Status{StatusPaymentRequired, StatusPaymentSubmitted}
)

func copyEditSubmitted(next AssignmentStatus) func(State) State {
	return func(s State) State {
		s.Assignment = next
		s.Stage = StageAuthorReview
		s.DraftStatus = DraftAwaitingAuthorReview
		return s
	}
}

func publish(s State) State {
	s.Status = StatusPublished
	s.Stage = StageReadyForPublication
	return s
}

var rules = map[Action]rule{
	ActionAssignReviewer: {
		roles:    editorial,
		statuses: []Status{StatusSubmitted, StatusUnderReview},
		apply: func(s State) State {
			s.Status = StatusUnderReview
			return s
		},
	},
	ActionSubmitReview: {
		roles:    []Role{RoleReviewer},
		statuses: []Status{StatusUnderReview},
		apply:    func(s State) State { return s },
	},
	ActionRequestRevision: {
		roles:    editorial,
		statuses: []Status{StatusUnderReview},
		apply: func(s State) State {
			s.Status = StatusRevisionRequested
			return s
		},
	},
	ActionSubmitRevision: {
		roles:    []Role{RoleAuthor},
		statuses: []Status{StatusRevisionRequested},
		apply: func(s State) State {
			s.Status = StatusSubmitted
			return s
		},
	},
	ActionAccept: {
		roles:    editorial,
		statuses: []Status{StatusUnderReview},
		apply: func(s State) State {
			s.Status = StatusAccepted
			return s
		},
	},
	ActionReject: {
		roles:    editorial,
		statuses: []Status{StatusSubmitted, StatusUnderReview, StatusRevisionRequested},
		apply: func(s State) State {
			s.Status = StatusRejected
			return s
		},
	},
	ActionAssignCopyEditor: {
		roles:    editorial,
		statuses: statusesWhere(Status.AcceptedFamily),
		apply: func(s State) State {
			s.Status = StatusAcceptedAwaitingCopyEdit
			s.Stage = StageCopyEditing
			s.Assignment = AssignmentAssigned
			s.DraftStatus = DraftNone
			return s
		},
	},
	ActionStartCopyEdit: {
		roles:      []Role{RoleCopyEditor},
		stages:     []Stage{StageCopyEditing},
		assignment: []AssignmentStatus{AssignmentAssigned},
		apply: func(s State) State {
			s.Assignment = AssignmentInProgress
			return s
		},
	},
	ActionSubmitGalley: {
		roles:      []Role{RoleCopyEditor},
		stages:     []Stage{StageCopyEditing},
		assignment: []AssignmentStatus{AssignmentAssigned, AssignmentInProgress},
		apply:      copyEditSubmitted(AssignmentGalleySubmitted),
	},
	ActionCompleteCopyEdit: {
		roles:      []Role{RoleCopyEditor},
		stages:     []Stage{StageCopyEditing},
		assignment: []AssignmentStatus{AssignmentAssigned, AssignmentInProgress},
		apply:      copyEditSubmitted(AssignmentCompleted),
	},
	ActionAuthorApproveCopyEdit: {
		roles:      []Role{RoleAuthor},
		stages:     []Stage{StageAuthorReview},
		assignment: []AssignmentStatus{AssignmentGalleySubmitted, AssignmentCompleted},
		apply: func(s State) State {
			s.DraftStatus = DraftApproved
			s.Assignment = AssignmentApprovedByAuthor
			s.Stage = StageAwaitingCopyEditorConfirmation
			return s
		},
	},
	ActionAuthorRejectCopyEdit: {
		roles:      []Role{RoleAuthor},
		stages:     []Stage{StageAuthorReview},
		assignment: []AssignmentStatus{AssignmentGalleySubmitted, AssignmentCompleted},
		apply: func(s State) State {
			s.DraftStatus = DraftRejectedByAuthor
			s.Assignment = AssignmentInProgress
			s.Stage = StageCopyEditing
			return s
		},
	},
	ActionConfirmCopyEdit: {
		roles:      []Role{RoleCopyEditor},
		stages:     []Stage{StageAwaitingCopyEditorConfirmation},
		assignment: []AssignmentStatus{AssignmentApprovedByAuthor},
		apply: func(s State) State {
			s.Assignment = AssignmentConfirmedByCopyEditor
			s.Stage = StageReadyForProduction
			if s.RequiresPayment && !s.PaymentStatus.Settled() {
				s.Status = StatusPaymentRequired
				s.PaymentStatus = PaymentPending
			} else {
				s.Status = StatusInProduction
			}
			return s
		},
	},
	ActionSubmitPayment: {
		roles:    []Role{RoleAuthor},
		statuses: []Status{StatusPaymentRequired},
		apply: func(s State) State {
			s.Status = StatusPaymentSubmitted
			s.PaymentStatus = PaymentSubmitted
			return s
		},
	},
	ActionAcceptPayment: {
		roles:    editorial,
		statuses: []Status{StatusPaymentSubmitted},
		apply: func(s State) State {
			s.Status = StatusInProduction
			s.PaymentStatus = PaymentCompleted
			return s
		},
	},
	ActionRejectPayment: {
		roles:    editorial,
		statuses: []Status{StatusPaymentSubmitted},
		apply: func(s State) State {
			s.Status = StatusPaymentRequired
			s.PaymentStatus = PaymentRejected
			return s
		},
	},
	ActionWaivePayment: {
		roles: editorial,
		statuses: append(statusesWhere(Status.AcceptedFamily), paymentStates...),
		apply: func(s State) State {
			if slices.Contains(paymentStates, s.Status) {
				s.Status = StatusInProduction
			}
			s.RequiresPayment = false
			s.PaymentStatus = PaymentWaived
			return s
		},
	},
	ActionMarkReady: {
		roles:    editorial,
		statuses: []Status{StatusInProduction},
		stages:   []Stage{StageReadyForProduction},
		apply: func(s State) State {
			s.Status = StatusReadyForPublication
			s.Stage = StageReadyForPublication
			return s
		},
	},
	ActionPublish: {
		roles:    editorial,
		statuses: []Status{StatusReadyForPublication},
		apply:    publish,
	},
	ActionDirectPublish: {
		roles:    editorial,
		statuses: []Status{StatusInProduction, StatusReadyForPublication},
		stages:   []Stage{StageReadyForProduction, StageReadyForPublication},
		apply:    publish,
	},
}

// Apply checks that role may perform action from the given state and returns
// the resulting state. The input state is never modified.
func Apply(action Action, role Role, from State) (State, error) {
	r, ok := rules[action]
	if !ok {
		return from, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !r.permits(role) {
		return from, &TransitionError{Action: action, Role: role, From: from, Err: ErrForbidden}
	}
	if reason := r.mismatch(from); reason != "" {
		return from, &TransitionError{Action: action, Role: role, From: from, Reason: reason, Err: ErrInvalidTransition}
	}
	return r.apply(from), nil
}

// Can reports whether Apply would succeed.
func Can(action Action, role Role, from State) bool {
	_, err := Apply(action, role, from)
	return err == nil
}

// Permitted reports whether role may perform action in some state.
func Permitted(action Action, role Role) bool {
	r, ok := rules[action]
	return ok && r.permits(role)
}

// Available lists the actions role can take from the given state, sorted by name.
func Available(role Role, from State) []Action {
	var out []Action
	for action := range rules {
		if Can(action, role, from) {
			out = append(out, action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r rule) permits(role Role) bool {
	for _, allowed := range r.roles {
		if role == allowed {
			return true
		}
		// admins act wherever editors do
		if role == RoleAdmin && allowed == RoleEditor {
			return true
		}
	}
	return false
}

func (r rule) mismatch(s State) string {
	if s.Status.Terminal() {
		return fmt.Sprintf("status %q is final", s.Status)
	}
	if len(r.statuses) > 0 && !slices.Contains(r.statuses, s.Status) {
		return fmt.Sprintf("status %q not in [%s]", s.Status, join(r.statuses))
	}
	if len(r.stages) > 0 && !slices.Contains(r.stages, s.Stage) {
		return fmt.Sprintf("copy-editing stage %q not in [%s]", s.Stage, join(r.stages))
	}
	if len(r.assignment) > 0 && !slices.Contains(r.assignment, s.Assignment) {
		return fmt.Sprintf("assignment status %q not in [%s]", s.Assignment, join(r.assignment))
	}
	return ""
}

func join[T ~string](set []T) string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// statusesWhere lists the known statuses matching keep, in life-cycle order.
func statusesWhere(keep func(Status) bool) []Status {
	var out []Status
	for _, s := range allStatuses {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// ActingRole picks the role a user performs action under. The active role wins
// when it is permitted; otherwise the first permitted held role is used.
func ActingRole(action Action, active Role, held []Role) (Role, bool) {
	if active != "" && Permitted(action, active) && slices.Contains(held, active) {
		return active, true
	}
	for _, r := range held {
		if Permitted(action, r) {
			return r, true
		}
	}
	return "", false
}
