package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

const userColumns = `id, email, password_hash, name, roles, current_active_role, is_founder,
	designation, designation_role, affiliation, bio, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var roles []byte
	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &roles, &u.CurrentActiveRole, &u.IsFounder,
		&u.Designation, &u.DesignationRole, &u.Affiliation, &u.Bio, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if _, err := decodeJSON(roles, &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return &u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Roles) == 0 {
		u.Roles = []workflow.Role{workflow.RoleAuthor}
	}
	if u.CurrentActiveRole == "" {
		u.CurrentActiveRole = u.Roles[0]
	}
	u.CreatedAt = p.now()
	u.UpdatedAt = u.CreatedAt
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	roles, err := jsonValue(u.Roles)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, roles, current_active_role, is_founder,
			designation, designation_role, affiliation, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Email, u.PasswordHash, u.Name, roles, u.CurrentActiveRole, u.IsFounder,
		u.Designation, u.DesignationRole, u.Affiliation, u.Bio, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// ListUsers returns every user, or only holders of role when it is set.
func (p *Postgres) ListUsers(ctx context.Context, role workflow.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		roleJSON, err := jsonValue([]workflow.Role{role})
		if err != nil {
			return nil, err
		}
		query += ` WHERE roles @> $1::jsonb`
		args = append(args, roleJSON)
	}
	query += ` ORDER BY name`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (p *Postgres) UpdateProfile(ctx context.Context, id uuid.UUID, req models.UpdateProfileRequest) (*models.User, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE users SET name = $2, affiliation = $3, bio = $4, updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns,
		id, req.Name, req.Affiliation, req.Bio, p.now(),
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (p *Postgres) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, p.now())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectOne(res)
}

func (p *Postgres) SetActiveRole(ctx context.Context, id uuid.UUID, role workflow.Role) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE users SET current_active_role = $2, updated_at = $3 WHERE id = $1`, id, role, p.now())
	if err != nil {
		return fmt.Errorf("set active role: %w", err)
	}
	return expectOne(res)
}

// SetRoles replaces the whole roles array. The active role is kept when it is
// still held and reset to the first new role otherwise, in the same statement.
func (p *Postgres) SetRoles(ctx context.Context, id uuid.UUID, roles []workflow.Role, designation, designationRole string) (*models.User, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("set roles: empty role list")
	}
	roleJSON, err := jsonValue(roles)
	if err != nil {
		return nil, err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE users SET
			roles = $2::jsonb,
			current_active_role = CASE WHEN $2::jsonb ? current_active_role THEN current_active_role ELSE $3 END,
			designation = $4,
			designation_role = $5,
			updated_at = $6
		WHERE id = $1
		RETURNING `+userColumns,
		id, roleJSON, roles[0], designation, designationRole, p.now(),
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// DeleteUser removes an account. Accounts that submitted manuscripts, hold
// review assignments or owe payments are kept and ErrInUse is returned.
func (p *Postgres) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOne(res)
}
