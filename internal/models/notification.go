package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	ManuscriptID *uuid.UUID `json:"manuscript_id" db:"manuscript_id"`
	Type         string     `json:"type" db:"type"`
	Message      string     `json:"message" db:"message"`
	IsRead       bool       `json:"is_read" db:"is_read"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
