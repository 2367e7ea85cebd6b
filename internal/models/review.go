package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReviewPending   = "pending"
	ReviewAccepted  = "accepted"
	ReviewDeclined  = "declined"
	ReviewCompleted = "completed"
)

type Ratings struct {
	Originality  int `json:"originality" binding:"required,min=1,max=5"`
	Methodology  int `json:"methodology" binding:"required,min=1,max=5"`
	Clarity      int `json:"clarity" binding:"required,min=1,max=5"`
	Significance int `json:"significance" binding:"required,min=1,max=5"`
	Overall      int `json:"overall" binding:"required,min=1,max=5"`
}

type Review struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	ManuscriptID         uuid.UUID  `json:"manuscript_id" db:"manuscript_id"`
	ReviewerID           uuid.UUID  `json:"reviewer_id" db:"reviewer_id"`
	AssignedBy           uuid.UUID  `json:"assigned_by" db:"assigned_by"`
	Round                int        `json:"round" db:"round"`
	Status               string     `json:"status" db:"status"`
	Recommendation       string     `json:"recommendation" db:"recommendation"`
	Ratings              *Ratings   `json:"ratings,omitempty" db:"ratings"`
	CommentsToAuthor     string     `json:"comments_to_author" db:"comments_to_author"`
	ConfidentialComments string     `json:"confidential_comments,omitempty" db:"confidential_comments"`
	DueDate              *time.Time `json:"due_date,omitempty" db:"due_date"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// ReviewFilter narrows review listings.
type ReviewFilter struct {
	ManuscriptID *uuid.UUID
	ReviewerID   *uuid.UUID
	Status       string
}

type RespondReviewRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

type SubmitReviewRequest struct {
	Recommendation       string  `json:"recommendation" binding:"required,oneof=accept minor-revision major-revision reject"`
	Ratings              Ratings `json:"ratings" binding:"required"`
	CommentsToAuthor     string  `json:"comments_to_author" binding:"required"`
	ConfidentialComments string  `json:"confidential_comments"`
}

// AuthorView strips reviewer identity and confidential remarks.
func (r Review) AuthorView() Review {
	r.ReviewerID = uuid.Nil
	r.AssignedBy = uuid.Nil
	r.ConfidentialComments = ""
	return r
}

func (r *Review) IsCompleted() bool {
	return r.Status == ReviewCompleted
}

func (r *Review) IsOpen() bool {
	return r.Status == ReviewPending || r.Status == ReviewAccepted
}
