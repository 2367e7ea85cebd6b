package models

import (
	"time"

	"github.com/google/uuid"
)

// TimelineEvent is one append-only audit entry for a manuscript.
type TimelineEvent struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	ManuscriptID uuid.UUID      `json:"manuscript_id" db:"manuscript_id"`
	Event        string         `json:"event" db:"event"`
	Description  string         `json:"description" db:"description"`
	PerformedBy  uuid.UUID      `json:"performed_by" db:"performed_by"`
	Metadata     map[string]any `json:"metadata,omitempty" db:"metadata"`
	Date         time.Time      `json:"date" db:"created_at"`
}
