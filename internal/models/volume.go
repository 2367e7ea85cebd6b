package models

import (
	"time"

	"github.com/google/uuid"
)

type Volume struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Number    int       `json:"number" db:"number"`
	Year      int       `json:"year" db:"year"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Issues    []Issue   `json:"issues,omitempty"`
}

type Issue struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	VolumeID    uuid.UUID   `json:"volume_id" db:"volume_id"`
	Number      int         `json:"number" db:"number"`
	Title       string      `json:"title" db:"title"`
	PublishedAt *time.Time  `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	Articles    []uuid.UUID `json:"articles"`
}

type CreateVolumeRequest struct {
	Number int    `json:"number" binding:"required,min=1"`
	Year   int    `json:"year" binding:"required,min=1900"`
	Title  string `json:"title"`
}

type CreateIssueRequest struct {
	Number int    `json:"number" binding:"required,min=1"`
	Title  string `json:"title"`
}
