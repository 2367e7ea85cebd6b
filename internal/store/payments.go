package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

const paymentColumns = `id, manuscript_id, author_id, amount, currency, reference, status,
	verified_by, verified_at, rejection_reason, created_at, updated_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var verifiedBy uuid.NullUUID
	if err := row.Scan(
		&p.ID, &p.ManuscriptID, &p.AuthorID, &p.Amount, &p.Currency, &p.Reference, &p.Status,
		&verifiedBy, &p.VerifiedAt, &p.RejectionReason, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if verifiedBy.Valid {
		p.VerifiedBy = &verifiedBy.UUID
	}
	return &p, nil
}

// upsertPayment keeps one payment row per manuscript. The reference is fixed
// at creation and never overwritten.
func (p *Postgres) upsertPayment(ctx context.Context, tx execer, pay *models.Payment) error {
	if pay.ID == uuid.Nil {
		pay.ID = uuid.New()
	}
	now := p.now()
	if pay.CreatedAt.IsZero() {
		pay.CreatedAt = now
	}
	pay.UpdatedAt = now
	var verifiedBy uuid.NullUUID
	if pay.VerifiedBy != nil {
		verifiedBy = uuid.NullUUID{UUID: *pay.VerifiedBy, Valid: true}
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO payments (id, manuscript_id, author_id, amount, currency, reference, status,
			verified_by, verified_at, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (manuscript_id) DO UPDATE SET
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			verified_by = EXCLUDED.verified_by,
			verified_at = EXCLUDED.verified_at,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = EXCLUDED.updated_at
		RETURNING id, reference`,
		pay.ID, pay.ManuscriptID, pay.AuthorID, pay.Amount, pay.Currency, pay.Reference, pay.Status,
		verifiedBy, pay.VerifiedAt, pay.RejectionReason, pay.CreatedAt, pay.UpdatedAt,
	).Scan(&pay.ID, &pay.Reference)
	if err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (p *Postgres) upsertPaymentInfo(ctx context.Context, tx execer, info *models.PaymentInfo) error {
	if info.ID == uuid.Nil {
		info.ID = uuid.New()
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = p.now()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_infos (id, payment_id, manuscript_id, bank_name, account_holder, transaction_id,
			receipt_url, amount_paid, paid_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		info.ID, info.PaymentID, info.ManuscriptID, info.BankName, info.AccountHolder, info.TransactionID,
		info.ReceiptURL, info.AmountPaid, info.PaidAt, info.Status, info.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert payment info: %w", err)
	}
	return nil
}

func (p *Postgres) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	pay, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return pay, nil
}

func (p *Postgres) GetPaymentByManuscript(ctx context.Context, manuscriptID uuid.UUID) (*models.Payment, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE manuscript_id = $1`, manuscriptID)
	pay, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err)
	}
	return pay, nil
}

func (p *Postgres) ListPayments(ctx context.Context, status workflow.PaymentStatus) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, *pay)
	}
	return out, rows.Err()
}

func (p *Postgres) LatestPaymentInfo(ctx context.Context, paymentID uuid.UUID) (*models.PaymentInfo, error) {
	var info models.PaymentInfo
	err := p.db.QueryRowContext(ctx, `
		SELECT id, payment_id, manuscript_id, bank_name, account_holder, transaction_id,
			receipt_url, amount_paid, paid_at, status, created_at
		FROM payment_infos WHERE payment_id = $1
		ORDER BY created_at DESC LIMIT 1`, paymentID,
	).Scan(
		&info.ID, &info.PaymentID, &info.ManuscriptID, &info.BankName, &info.AccountHolder, &info.TransactionID,
		&info.ReceiptURL, &info.AmountPaid, &info.PaidAt, &info.Status, &info.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &info, nil
}
