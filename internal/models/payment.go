package models

import (
	"time"

	"journal-backend/internal/workflow"

	"github.com/google/uuid"
)

const (
	PaymentInfoPendingVerification = "pending-verification"
	PaymentInfoVerified            = "verified"
	PaymentInfoRejected            = "rejected"
)

type Payment struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	ManuscriptID    uuid.UUID              `json:"manuscript_id" db:"manuscript_id"`
	AuthorID        uuid.UUID              `json:"author_id" db:"author_id"`
	Amount          float64                `json:"amount" db:"amount"`
	Currency        string                 `json:"currency" db:"currency"`
	Reference       string                 `json:"reference" db:"reference"`
	Status          workflow.PaymentStatus `json:"status" db:"status"`
	VerifiedBy      *uuid.UUID             `json:"verified_by,omitempty" db:"verified_by"`
	VerifiedAt      *time.Time             `json:"verified_at,omitempty" db:"verified_at"`
	RejectionReason string                 `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
}

// PaymentInfo is the bank-transfer evidence an author submits for verification.
type PaymentInfo struct {
	ID            uuid.UUID `json:"id" db:"id"`
	PaymentID     uuid.UUID `json:"payment_id" db:"payment_id"`
	ManuscriptID  uuid.UUID `json:"manuscript_id" db:"manuscript_id"`
	BankName      string    `json:"bank_name" db:"bank_name"`
	AccountHolder string    `json:"account_holder" db:"account_holder"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	ReceiptURL    string    `json:"receipt_url" db:"receipt_url"`
	AmountPaid    float64   `json:"amount_paid" db:"amount_paid"`
	PaidAt        time.Time `json:"paid_at" db:"paid_at"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type PaymentWithInfo struct {
	Payment
	Info *PaymentInfo `json:"info,omitempty"`
}

type SubmitPaymentRequest struct {
	BankName      string     `json:"bank_name" binding:"required"`
	AccountHolder string     `json:"account_holder" binding:"required"`
	TransactionID string     `json:"transaction_id" binding:"required"`
	ReceiptURL    string     `json:"receipt_url" binding:"omitempty,url"`
	AmountPaid    float64    `json:"amount_paid" binding:"required,gt=0"`
	PaidAt        *time.Time `json:"paid_at"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type WaivePaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}
