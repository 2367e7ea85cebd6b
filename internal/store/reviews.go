package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"journal-backend/internal/models"
)

const reviewColumns = `id, manuscript_id, reviewer_id, assigned_by, round, status, recommendation, ratings,
	comments_to_author, confidential_comments, due_date, submitted_at, created_at, updated_at`

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	var ratings []byte
	if err := row.Scan(
		&r.ID, &r.ManuscriptID, &r.ReviewerID, &r.AssignedBy, &r.Round, &r.Status, &r.Recommendation, &ratings,
		&r.CommentsToAuthor, &r.ConfidentialComments, &r.DueDate, &r.SubmittedAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var rt models.Ratings
	if ok, err := decodeJSON(ratings, &rt); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	} else if ok {
		r.Ratings = &rt
	}
	return &r, nil
}

func (p *Postgres) insertReview(ctx context.Context, tx execer, r *models.Review) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = models.ReviewPending
	}
	r.CreatedAt = p.now()
	r.UpdatedAt = r.CreatedAt
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (id, manuscript_id, reviewer_id, assigned_by, round, status, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.ManuscriptID, r.ReviewerID, r.AssignedBy, r.Round, r.Status, r.DueDate, r.CreatedAt, r.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (p *Postgres) updateReview(ctx context.Context, tx execer, r *models.Review) error {
	ratings, err := jsonArg(r.Ratings)
	if err != nil {
		return err
	}
	r.UpdatedAt = p.now()
	res, err := tx.ExecContext(ctx, `
		UPDATE reviews SET status = $2, recommendation = $3, ratings = $4, comments_to_author = $5,
			confidential_comments = $6, submitted_at = $7, updated_at = $8
		WHERE id = $1`,
		r.ID, r.Status, r.Recommendation, ratings, r.CommentsToAuthor,
		r.ConfidentialComments, r.SubmittedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return expectOne(res)
}

func (p *Postgres) GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	r, err := scanReview(row)
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func (p *Postgres) ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, error) {
	var where []string
	var args []any
	if f.ManuscriptID != nil {
		args = append(args, *f.ManuscriptID)
		where = append(where, fmt.Sprintf("manuscript_id = $%d", len(args)))
	}
	if f.ReviewerID != nil {
		args = append(args, *f.ReviewerID)
		where = append(where, fmt.Sprintf("reviewer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"
	return p.queryReviews(ctx, query, args...)
}

// UpdateReviewStatus records a reviewer's response to an invitation.
func (p *Postgres) UpdateReviewStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE reviews SET status = $2, updated_at = $3 WHERE id = $1`, id, status, p.now())
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	return expectOne(res)
}

// OverdueReviews lists open reviews on manuscripts still under review whose
// due date has passed.
func (p *Postgres) OverdueReviews(ctx context.Context, now time.Time) ([]models.Review, error) {
	return p.queryReviews(ctx, `
		SELECT `+prefixColumns("r", reviewColumns)+`
		FROM reviews r JOIN manuscripts m ON m.id = r.manuscript_id
		WHERE r.status IN ($1, $2) AND r.due_date IS NOT NULL AND r.due_date < $3 AND m.status = 'under-review'
		ORDER BY r.due_date`,
		models.ReviewPending, models.ReviewAccepted, now,
	)
}

func (p *Postgres) queryReviews(ctx context.Context, query string, args ...any) ([]models.Review, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []models.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
