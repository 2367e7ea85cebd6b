package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

const manuscriptColumns = `id, submission_number, title, abstract, keywords, authors, submitted_by,
	manuscript_url, cover_letter, revision_number, status, copy_editing_stage, draft_status,
	copy_editor_assignment, author_copy_edit_review, copy_edit_review, requires_payment,
	payment_status, apc_amount, views, downloads, citations, volume_id, issue_id, pages, doi,
	published_at, created_at, updated_at`

func scanManuscript(row rowScanner) (*models.Manuscript, error) {
	var m models.Manuscript
	var keywords, authors, assignment, authorReview, copyReview []byte
	var volumeID, issueID uuid.NullUUID
	var pages, doi string
	var publishedAt *time.Time
	if err := row.Scan(
		&m.ID, &m.SubmissionNumber, &m.Title, &m.Abstract, &keywords, &authors, &m.SubmittedBy,
		&m.ManuscriptURL, &m.CoverLetter, &m.RevisionNumber, &m.Status, &m.CopyEditingStage, &m.DraftStatus,
		&assignment, &authorReview, &copyReview, &m.RequiresPayment,
		&m.PaymentStatus, &m.APCAmount, &m.Metrics.Views, &m.Metrics.Downloads, &m.Metrics.Citations,
		&volumeID, &issueID, &pages, &doi, &publishedAt, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if _, err := decodeJSON(keywords, &m.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}
	if _, err := decodeJSON(authors, &m.Authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	var a models.CopyEditorAssignment
	if ok, err := decodeJSON(assignment, &a); err != nil {
		return nil, fmt.Errorf("decode copy editor assignment: %w", err)
	} else if ok {
		m.CopyEditorAssignment = &a
	}
	var ar models.AuthorCopyEditReview
	if ok, err := decodeJSON(authorReview, &ar); err != nil {
		return nil, fmt.Errorf("decode author copy edit review: %w", err)
	} else if ok {
		m.AuthorCopyEditReview = &ar
	}
	var cr models.CopyEditReview
	if ok, err := decodeJSON(copyReview, &cr); err != nil {
		return nil, fmt.Errorf("decode copy edit review: %w", err)
	} else if ok {
		m.CopyEditReview = &cr
	}
	if volumeID.Valid && issueID.Valid {
		m.Publication = &models.Publication{
			VolumeID:    volumeID.UUID,
			IssueID:     issueID.UUID,
			Pages:       pages,
			DOI:         doi,
			PublishedAt: publishedAt,
		}
	}
	return &m, nil
}

type manuscriptArgs struct {
	keywords, authors              string
	assignment, authorRev, copyRev any
	volumeID, issueID              uuid.NullUUID
	pages, doi                     string
	publishedAt                    *time.Time
}

func encodeManuscript(m *models.Manuscript) (*manuscriptArgs, error) {
	var a manuscriptArgs
	var err error
	if m.Keywords == nil {
		m.Keywords = []string{}
	}
	if a.keywords, err = jsonValue(m.Keywords); err != nil {
		return nil, err
	}
	if a.authors, err = jsonValue(m.Authors); err != nil {
		return nil, err
	}
	if a.assignment, err = jsonArg(m.CopyEditorAssignment); err != nil {
		return nil, err
	}
	if a.authorRev, err = jsonArg(m.AuthorCopyEditReview); err != nil {
		return nil, err
	}
	if a.copyRev, err = jsonArg(m.CopyEditReview); err != nil {
		return nil, err
	}
	if pub := m.Publication; pub != nil {
		a.volumeID = uuid.NullUUID{UUID: pub.VolumeID, Valid: true}
		a.issueID = uuid.NullUUID{UUID: pub.IssueID, Valid: true}
		a.pages, a.doi, a.publishedAt = pub.Pages, pub.DOI, pub.PublishedAt
	}
	return &a, nil
}

func (p *Postgres) CreateManuscript(ctx context.Context, m *models.Manuscript, ev models.TimelineEvent) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = p.now()
	m.UpdatedAt = m.CreatedAt
	args, err := encodeManuscript(m)
	if err != nil {
		return err
	}

	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO manuscripts (id, submission_number, title, abstract, keywords, authors, submitted_by,
				manuscript_url, cover_letter, revision_number, status, copy_editing_stage, draft_status,
				requires_payment, payment_status, apc_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			m.ID, m.SubmissionNumber, m.Title, m.Abstract, args.keywords, args.authors, m.SubmittedBy,
			m.ManuscriptURL, m.CoverLetter, m.RevisionNumber, m.Status, m.CopyEditingStage, m.DraftStatus,
			m.RequiresPayment, m.PaymentStatus, m.APCAmount, m.CreatedAt, m.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("insert manuscript: %w", err)
		}
		ev.ManuscriptID = m.ID
		return p.insertEvent(ctx, tx, &ev)
	})
}

func (p *Postgres) GetManuscript(ctx context.Context, id uuid.UUID) (*models.Manuscript, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+manuscriptColumns+` FROM manuscripts WHERE id = $1`, id)
	m, err := scanManuscript(row)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (p *Postgres) ListManuscripts(ctx context.Context, f models.ManuscriptFilter) ([]models.Manuscript, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.SubmittedBy != nil {
		byID := arg(*f.SubmittedBy)
		asText := arg(f.SubmittedBy.String())
		where = append(where, "(submitted_by = "+byID+" OR authors @> jsonb_build_array(jsonb_build_object('user_id', "+asText+"::text)))")
	}
	if f.ReviewerID != nil {
		where = append(where, "id IN (SELECT manuscript_id FROM reviews WHERE reviewer_id = "+arg(*f.ReviewerID)+" AND status <> 'declined')")
	}
	if f.CopyEditorID != nil {
		where = append(where, "copy_editor_assignment->>'copy_editor_id' = "+arg(f.CopyEditorID.String()))
	}

	query := `SELECT ` + manuscriptColumns + ` FROM manuscripts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Status == workflow.StatusPublished {
		query += " ORDER BY published_at DESC NULLS LAST"
	} else {
		query += " ORDER BY created_at DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list manuscripts: %w", err)
	}
	defer rows.Close()

	out := []models.Manuscript{}
	for rows.Next() {
		m, err := scanManuscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manuscript: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SaveTransition writes the manuscript and every attached record in one
// transaction. The manuscript update is guarded by its previous updated_at so
// a concurrent writer produces ErrConflict instead of a lost update.
func (p *Postgres) SaveTransition(ctx context.Context, t Transition) error {
	m := t.Manuscript
	if m == nil {
		return fmt.Errorf("save transition: manuscript is required")
	}
	prev := m.UpdatedAt
	now := p.now()
	args, err := encodeManuscript(m)
	if err != nil {
		return err
	}

	err = p.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE manuscripts SET
				title = $3, abstract = $4, keywords = $5, authors = $6, manuscript_url = $7,
				cover_letter = $8, revision_number = $9, status = $10, copy_editing_stage = $11,
				draft_status = $12, copy_editor_assignment = $13, author_copy_edit_review = $14,
				copy_edit_review = $15, requires_payment = $16, payment_status = $17, apc_amount = $18,
				volume_id = $19, issue_id = $20, pages = $21, doi = $22, published_at = $23, updated_at = $24
			WHERE id = $1 AND updated_at = $2`,
			m.ID, prev, m.Title, m.Abstract, args.keywords, args.authors, m.ManuscriptURL,
			m.CoverLetter, m.RevisionNumber, m.Status, m.CopyEditingStage,
			m.DraftStatus, args.assignment, args.authorRev,
			args.copyRev, m.RequiresPayment, m.PaymentStatus, m.APCAmount,
			args.volumeID, args.issueID, args.pages, args.doi, args.publishedAt, now,
		)
		if err != nil {
			return fmt.Errorf("update manuscript: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrConflict
		}

		if t.InsertReview != nil {
			if err := p.insertReview(ctx, tx, t.InsertReview); err != nil {
				return err
			}
		}
		if t.UpdateReview != nil {
			if err := p.updateReview(ctx, tx, t.UpdateReview); err != nil {
				return err
			}
		}
		if t.Payment != nil {
			if err := p.upsertPayment(ctx, tx, t.Payment); err != nil {
				return err
			}
		}
		if t.PaymentInfo != nil {
			if t.Payment != nil {
				t.PaymentInfo.PaymentID = t.Payment.ID
			}
			if err := p.upsertPaymentInfo(ctx, tx, t.PaymentInfo); err != nil {
				return err
			}
		}
		if t.Article != nil {
			if err := p.insertArticle(ctx, tx, *t.Article); err != nil {
				return err
			}
		}
		for i := range t.Events {
			t.Events[i].ManuscriptID = m.ID
			if err := p.insertEvent(ctx, tx, &t.Events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

func (p *Postgres) insertEvent(ctx context.Context, tx execer, ev *models.TimelineEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Date.IsZero() {
		ev.Date = p.now()
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]any{}
	}
	meta, err := jsonValue(ev.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO manuscript_timeline (id, manuscript_id, event, description, performed_by, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.ManuscriptID, ev.Event, ev.Description, ev.PerformedBy, meta, ev.Date,
	)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

// insertArticle adds the manuscript to the issue at the next position. The
// primary key makes repeated inserts no-ops.
func (p *Postgres) insertArticle(ctx context.Context, tx execer, a IssueArticle) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO issue_articles (issue_id, manuscript_id, position)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM issue_articles WHERE issue_id = $1))
		ON CONFLICT (issue_id, manuscript_id) DO NOTHING`,
		a.IssueID, a.ManuscriptID,
	)
	if err != nil {
		return fmt.Errorf("insert issue article: %w", err)
	}
	return nil
}

func (p *Postgres) Timeline(ctx context.Context, manuscriptID uuid.UUID) ([]models.TimelineEvent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, manuscript_id, event, description, performed_by, metadata, created_at
		FROM manuscript_timeline WHERE manuscript_id = $1 ORDER BY created_at, id`, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	events := []models.TimelineEvent{}
	for rows.Next() {
		var ev models.TimelineEvent
		var meta []byte
		if err := rows.Scan(&ev.ID, &ev.ManuscriptID, &ev.Event, &ev.Description, &ev.PerformedBy, &meta, &ev.Date); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		if _, err := decodeJSON(meta, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("decode timeline metadata: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// IncrementMetric bumps a counter on a published manuscript.
func (p *Postgres) IncrementMetric(ctx context.Context, id uuid.UUID, metric string) error {
	switch metric {
	case MetricViews, MetricDownloads, MetricCitations:
	default:
		return fmt.Errorf("unknown metric %q", metric)
	}
	res, err := p.db.ExecContext(ctx,
		`UPDATE manuscripts SET `+metric+` = `+metric+` + 1 WHERE id = $1 AND status = $2`,
		id, workflow.StatusPublished)
	if err != nil {
		return fmt.Errorf("increment %s: %w", metric, err)
	}
	return expectOne(res)
}

// OverdueCopyEdits lists manuscripts whose copy-edit assignment is past due
// and still open on the copy-editor side.
func (p *Postgres) OverdueCopyEdits(ctx context.Context, now time.Time) ([]models.Manuscript, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+manuscriptColumns+` FROM manuscripts
		WHERE copy_editing_stage = $1
			AND copy_editor_assignment->>'status' IN ($2, $3)
			AND (copy_editor_assignment->>'due_date')::timestamptz < $4
		ORDER BY (copy_editor_assignment->>'due_date')::timestamptz`,
		workflow.StageCopyEditing, workflow.AssignmentAssigned, workflow.AssignmentInProgress, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list overdue copy edits: %w", err)
	}
	defer rows.Close()

	out := []models.Manuscript{}
	for rows.Next() {
		m, err := scanManuscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manuscript: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
