package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"journal-backend/internal/models"
)

func (p *Postgres) CreateVolume(ctx context.Context, v *models.Volume) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = p.now()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO volumes (id, number, year, title, created_at) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.Number, v.Year, v.Title, v.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert volume: %w", err)
	}
	return nil
}

func (p *Postgres) GetVolume(ctx context.Context, id uuid.UUID) (*models.Volume, error) {
	var v models.Volume
	err := p.db.QueryRowContext(ctx,
		`SELECT id, number, year, title, created_at FROM volumes WHERE id = $1`, id,
	).Scan(&v.ID, &v.Number, &v.Year, &v.Title, &v.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	issues, err := p.issues(ctx, `WHERE i.volume_id = $1`, id)
	if err != nil {
		return nil, err
	}
	v.Issues = issues
	return &v, nil
}

// ListVolumes returns volumes newest first with their issues attached.
func (p *Postgres) ListVolumes(ctx context.Context) ([]models.Volume, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, number, year, title, created_at FROM volumes ORDER BY number DESC`)
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	defer rows.Close()

	volumes := []models.Volume{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var v models.Volume
		if err := rows.Scan(&v.ID, &v.Number, &v.Year, &v.Title, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		index[v.ID] = len(volumes)
		volumes = append(volumes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	issues, err := p.issues(ctx, ``)
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		if i, ok := index[is.VolumeID]; ok {
			volumes[i].Issues = append(volumes[i].Issues, is)
		}
	}
	return volumes, nil
}

func (p *Postgres) CreateIssue(ctx context.Context, is *models.Issue) error {
	if is.ID == uuid.Nil {
		is.ID = uuid.New()
	}
	is.CreatedAt = p.now()
	if is.Articles == nil {
		is.Articles = []uuid.UUID{}
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO issues (id, volume_id, number, title, created_at) VALUES ($1, $2, $3, $4, $5)`,
		is.ID, is.VolumeID, is.Number, is.Title, is.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

func (p *Postgres) GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error) {
	issues, err := p.issues(ctx, `WHERE i.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return nil, ErrNotFound
	}
	return &issues[0], nil
}

// issues loads issues with their ordered article ids.
func (p *Postgres) issues(ctx context.Context, where string, args ...any) ([]models.Issue, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT i.id, i.volume_id, i.number, i.title, i.published_at, i.created_at,
			COALESCE(array_to_json(array_agg(a.manuscript_id ORDER BY a.position)
				FILTER (WHERE a.manuscript_id IS NOT NULL)), '[]')
		FROM issues i LEFT JOIN issue_articles a ON a.issue_id = i.id
		`+where+`
		GROUP BY i.id
		ORDER BY i.number`, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	out := []models.Issue{}
	for rows.Next() {
		var is models.Issue
		var articles []byte
		if err := rows.Scan(&is.ID, &is.VolumeID, &is.Number, &is.Title, &is.PublishedAt, &is.CreatedAt, &articles); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		is.Articles = []uuid.UUID{}
		if _, err := decodeJSON(articles, &is.Articles); err != nil {
			return nil, fmt.Errorf("decode issue articles: %w", err)
		}
		out = append(out, is)
	}
	return out, rows.Err()
}
