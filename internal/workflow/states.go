// Package workflow defines the manuscript life cycle: the value sets for every
// workflow field and the single transition table that handlers consult before
// mutating a manuscript.
package workflow

import "strings"

// Status is the top-level editorial status of a manuscript.
type Status string

const (
	StatusSubmitted                Status = "submitted"
	StatusUnderReview              Status = "under-review"
	StatusRevisionRequested        Status = "revision-requested"
	StatusAccepted                 Status = "accepted"
	StatusAcceptedAwaitingCopyEdit Status = "accepted-awaiting-copy-edit"
	StatusPaymentRequired          Status = "payment-required"
	StatusPaymentSubmitted         Status = "payment-submitted"
	StatusInProduction             Status = "in-production"
	StatusReadyForPublication      Status = "ready-for-publication"
	StatusPublished                Status = "published"
	StatusRejected                 Status = "rejected"
)

var allStatuses = []Status{
	StatusSubmitted,
	StatusUnderReview,
	StatusRevisionRequested,
	StatusAccepted,
	StatusAcceptedAwaitingCopyEdit,
	StatusPaymentRequired,
	StatusPaymentSubmitted,
	StatusInProduction,
	StatusReadyForPublication,
	StatusPublished,
	StatusRejected,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// AcceptedFamily reports whether s counts as accepted for copy-editing purposes.
func (s Status) AcceptedFamily() bool {
	return s == StatusAccepted || s == StatusAcceptedAwaitingCopyEdit
}

// Stage is the copy-editing sub-workflow position.
type Stage string

const (
	StageNone                           Stage = ""
	StageCopyEditing                    Stage = "copy-editing"
	StageAuthorReview                   Stage = "author-review"
	StageAwaitingCopyEditorConfirmation Stage = "awaiting-copy-editor-confirmation"
	StageReadyForProduction             Stage = "ready-for-production"
	StageReadyForPublication            Stage = "ready-for-publication"
)

// DraftStatus tracks the author's verdict on the copy-edited draft.
type DraftStatus string

const (
	DraftNone                 DraftStatus = ""
	DraftAwaitingAuthorReview DraftStatus = "awaiting-author-review"
	DraftApproved             DraftStatus = "approved"
	DraftRejectedByAuthor     DraftStatus = "rejected-by-author"
)

// AssignmentStatus is the status of the copy-editor assignment sub-document.
type AssignmentStatus string

const (
	AssignmentNone                  AssignmentStatus = ""
	AssignmentAssigned              AssignmentStatus = "assigned"
	AssignmentInProgress            AssignmentStatus = "in-progress"
	AssignmentCompleted             AssignmentStatus = "completed"
	AssignmentGalleySubmitted       AssignmentStatus = "galley-submitted"
	AssignmentApprovedByAuthor      AssignmentStatus = "approved-by-author"
	AssignmentConfirmedByCopyEditor AssignmentStatus = "confirmed-by-copy-editor"
)

// PaymentStatus mirrors the APC payment record onto the manuscript.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = ""
	PaymentPending   PaymentStatus = "pending"
	PaymentSubmitted PaymentStatus = "submitted"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentWaived    PaymentStatus = "waived"
)

// Settled reports whether no further money is owed.
func (p PaymentStatus) Settled() bool {
	return p == PaymentCompleted || p == PaymentWaived
}

// Role is a portal role a user may hold.
type Role string

const (
	RoleAuthor     Role = "author"
	RoleReviewer   Role = "reviewer"
	RoleEditor     Role = "editor"
	RoleCopyEditor Role = "copy-editor"
	RoleAdmin      Role = "admin"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{RoleAuthor, RoleReviewer, RoleEditor, RoleCopyEditor, RoleAdmin}

// ParseRole normalizes raw input into a known role.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range AllRoles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// State is the tuple of workflow fields carried by a manuscript.
type State struct {
	Status          Status           `json:"status"`
	Stage           Stage            `json:"copy_editing_stage"`
	DraftStatus     DraftStatus      `json:"draft_status"`
	Assignment      AssignmentStatus `json:"copy_editor_assignment_status"`
	RequiresPayment bool             `json:"requires_payment"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
}

// Initial is the state of a freshly submitted manuscript.
func Initial() State {
	return State{Status: StatusSubmitted}
}
