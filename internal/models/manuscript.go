package models

import (
	"time"

	"journal-backend/internal/workflow"

	"github.com/google/uuid"
)

type Author struct {
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	Name          string     `json:"name" binding:"required"`
	Email         string     `json:"email" binding:"omitempty,email"`
	Affiliation   string     `json:"affiliation"`
	Corresponding bool       `json:"corresponding"`
}

type GalleyProof struct {
	URL        string    `json:"url"`
	Version    int       `json:"version"`
	Notes      string    `json:"notes,omitempty"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type AuthorApproval struct {
	Approved   bool      `json:"approved"`
	Comments   string    `json:"comments,omitempty"`
	ApprovedAt time.Time `json:"approved_at"`
}

type CopyEditorConfirmation struct {
	Confirmed   bool      `json:"confirmed"`
	Comments    string    `json:"comments,omitempty"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type CopyEditorAssignment struct {
	CopyEditorID           uuid.UUID                 `json:"copy_editor_id"`
	AssignedBy             uuid.UUID                 `json:"assigned_by"`
	AssignedAt             time.Time                 `json:"assigned_at"`
	DueDate                *time.Time                `json:"due_date,omitempty"`
	Instructions           string                    `json:"instructions,omitempty"`
	Status                 workflow.AssignmentStatus `json:"status"`
	GalleyProofs           []GalleyProof             `json:"galley_proofs"`
	AuthorApproval         *AuthorApproval           `json:"author_approval,omitempty"`
	CopyEditorConfirmation *CopyEditorConfirmation   `json:"copy_editor_confirmation,omitempty"`
}

type AuthorCopyEditReview struct {
	Approved   bool      `json:"approved"`
	Comments   string    `json:"comments"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

type CopyEditReview struct {
	CompletionStatus workflow.AssignmentStatus `json:"completion_status"`
	GalleyProofURL   string                    `json:"galley_proof_url,omitempty"`
	Notes            string                    `json:"notes,omitempty"`
	SubmittedAt      time.Time                 `json:"submitted_at"`
}

type Metrics struct {
	Views     int `json:"views" db:"views"`
	Downloads int `json:"downloads" db:"downloads"`
	Citations int `json:"citations" db:"citations"`
}

type Publication struct {
	VolumeID    uuid.UUID  `json:"volume_id" db:"volume_id"`
	IssueID     uuid.UUID  `json:"issue_id" db:"issue_id"`
	Pages       string     `json:"pages" db:"pages"`
	DOI         string     `json:"doi" db:"doi"`
	PublishedAt *time.Time `json:"published_at" db:"published_at"`
}

type Manuscript struct {
	ID               uuid.UUID `json:"id" db:"id"`
	SubmissionNumber string    `json:"submission_number" db:"submission_number"`
	Title            string    `json:"title" db:"title"`
	Abstract         string    `json:"abstract" db:"abstract"`
	Keywords         []string  `json:"keywords" db:"keywords"`
	Authors          []Author  `json:"authors" db:"authors"`
	SubmittedBy      uuid.UUID `json:"submitted_by" db:"submitted_by"`
	ManuscriptURL    string    `json:"manuscript_url" db:"manuscript_url"`
	CoverLetter      string    `json:"cover_letter" db:"cover_letter"`
	RevisionNumber   int       `json:"revision_number" db:"revision_number"`

	// Workflow Fields
	Status               workflow.Status        `json:"status" db:"status"`
	CopyEditingStage     workflow.Stage         `json:"copy_editing_stage" db:"copy_editing_stage"`
	DraftStatus          workflow.DraftStatus   `json:"draft_status" db:"draft_status"`
	CopyEditorAssignment *CopyEditorAssignment  `json:"copy_editor_assignment,omitempty" db:"copy_editor_assignment"`
	AuthorCopyEditReview *AuthorCopyEditReview  `json:"author_copy_edit_review,omitempty" db:"author_copy_edit_review"`
	CopyEditReview       *CopyEditReview        `json:"copy_edit_review,omitempty" db:"copy_edit_review"`
	RequiresPayment      bool                   `json:"requires_payment" db:"requires_payment"`
	PaymentStatus        workflow.PaymentStatus `json:"payment_status" db:"payment_status"`
	APCAmount            float64                `json:"apc_amount" db:"apc_amount"`

	Metrics     Metrics      `json:"metrics"`
	Publication *Publication `json:"publication,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// State extracts the workflow tuple from the manuscript fields.
func (m *Manuscript) State() workflow.State {
	s := workflow.State{
		Status:          m.Status,
		Stage:           m.CopyEditingStage,
		DraftStatus:     m.DraftStatus,
		RequiresPayment: m.RequiresPayment,
		PaymentStatus:   m.PaymentStatus,
	}
	if m.CopyEditorAssignment != nil {
		s.Assignment = m.CopyEditorAssignment.Status
	}
	return s
}

// SetState writes a workflow tuple back onto the manuscript. The assignment
// status is only stored when an assignment sub-document exists.
func (m *Manuscript) SetState(s workflow.State) {
	m.Status = s.Status
	m.CopyEditingStage = s.Stage
	m.DraftStatus = s.DraftStatus
	m.RequiresPayment = s.RequiresPayment
	m.PaymentStatus = s.PaymentStatus
	if m.CopyEditorAssignment != nil {
		m.CopyEditorAssignment.Status = s.Assignment
	}
}

// IsSubmitter reports whether userID submitted the manuscript or is listed as
// one of its registered authors.
func (m *Manuscript) IsSubmitter(userID uuid.UUID) bool {
	if m.SubmittedBy == userID {
		return true
	}
	for _, a := range m.Authors {
		if a.UserID != nil && *a.UserID == userID {
			return true
		}
	}
	return false
}

// IsCopyEditor reports whether userID holds the copy-editing assignment.
func (m *Manuscript) IsCopyEditor(userID uuid.UUID) bool {
	return m.CopyEditorAssignment != nil && m.CopyEditorAssignment.CopyEditorID == userID
}

// ManuscriptFilter narrows manuscript listings.
type ManuscriptFilter struct {
	Status       workflow.Status
	SubmittedBy  *uuid.UUID
	ReviewerID   *uuid.UUID
	CopyEditorID *uuid.UUID
	Limit        int
}

type CreateManuscriptRequest struct {
	Title         string   `json:"title" binding:"required,max=500"`
	Abstract      string   `json:"abstract" binding:"required"`
	Keywords      []string `json:"keywords"`
	Authors       []Author `json:"authors" binding:"required,min=1,dive"`
	ManuscriptURL string   `json:"manuscript_url" binding:"required,url"`
	CoverLetter   string   `json:"cover_letter"`
}

type AssignReviewerRequest struct {
	ReviewerID uuid.UUID  `json:"reviewer_id" binding:"required"`
	DueDate    *time.Time `json:"due_date"`
}

type DecisionRequest struct {
	Decision  string   `json:"decision" binding:"required,oneof=accept revision reject"`
	Comments  string   `json:"comments"`
	APCAmount *float64 `json:"apc_amount" binding:"omitempty,min=0"`
}

type RevisionRequest struct {
	ManuscriptURL       string `json:"manuscript_url" binding:"required,url"`
	ResponseToReviewers string `json:"response_to_reviewers"`
}

type AssignCopyEditorRequest struct {
	CopyEditorID uuid.UUID  `json:"copy_editor_id" binding:"required"`
	DueDate      *time.Time `json:"due_date"`
	Instructions string     `json:"instructions"`
}

type SubmitCopyEditRequest struct {
	CompletionStatus string `json:"completion_status" binding:"required,oneof=galley-submitted completed"`
	GalleyProofURL   string `json:"galley_proof_url" binding:"omitempty,url"`
	Notes            string `json:"notes"`
}

type AuthorCopyEditApprovalRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comments string `json:"comments"`
}

type ConfirmCopyEditRequest struct {
	Comments string `json:"comments"`
}

type PublishRequest struct {
	VolumeID uuid.UUID `json:"volume_id" binding:"required"`
	IssueID  uuid.UUID `json:"issue_id" binding:"required"`
	Pages    string    `json:"pages"`
	DOI      string    `json:"doi"`
}
