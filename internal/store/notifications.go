package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"journal-backend/internal/models"
)

func (p *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = p.now()
	var manuscriptID uuid.NullUUID
	if n.ManuscriptID != nil {
		manuscriptID = uuid.NullUUID{UUID: *n.ManuscriptID, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, manuscript_id, type, message, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, manuscriptID, n.Type, n.Message, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (p *Postgres) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	query := `SELECT id, user_id, manuscript_id, type, message, is_read, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT 200`

	rows, err := p.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var manuscriptID uuid.NullUUID
		if err := rows.Scan(&n.ID, &n.UserID, &manuscriptID, &n.Type, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if manuscriptID.Valid {
			n.ManuscriptID = &manuscriptID.UUID
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return expectOne(res)
}

func (p *Postgres) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}
