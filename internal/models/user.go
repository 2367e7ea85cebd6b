package models

import (
	"time"

	"journal-backend/internal/workflow"

	"github.com/google/uuid"
)

type User struct {
	ID                uuid.UUID       `json:"id" db:"id"`
	Email             string          `json:"email" db:"email"`
	PasswordHash      string          `json:"-" db:"password_hash"`
	Name              string          `json:"name" db:"name"`
	Roles             []workflow.Role `json:"roles" db:"roles"`
	CurrentActiveRole workflow.Role   `json:"current_active_role" db:"current_active_role"`
	IsFounder         bool            `json:"is_founder" db:"is_founder"`
	Designation       string          `json:"designation" db:"designation"`
	DesignationRole   string          `json:"designation_role" db:"designation_role"`
	Affiliation       string          `json:"affiliation" db:"affiliation"`
	Bio               string          `json:"bio" db:"bio"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Name        string `json:"name" binding:"required"`
	Affiliation string `json:"affiliation"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type UpdateProfileRequest struct {
	Name        string `json:"name" binding:"required"`
	Affiliation string `json:"affiliation"`
	Bio         string `json:"bio"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateRolesRequest replaces the full role list of a user.
type UpdateRolesRequest struct {
	Roles           []string `json:"roles" binding:"required,min=1,dive,required"`
	Designation     string   `json:"designation"`
	DesignationRole string   `json:"designation_role"`
}

func (u *User) HasRole(role workflow.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(workflow.RoleAdmin)
}

// ActiveRole returns the role the user currently acts in. It falls back to the
// first held role when the stored active role is unset or no longer held.
func (u *User) ActiveRole() workflow.Role {
	if u.CurrentActiveRole != "" && u.HasRole(u.CurrentActiveRole) {
		return u.CurrentActiveRole
	}
	if len(u.Roles) > 0 {
		return u.Roles[0]
	}
	return workflow.RoleAuthor
}

// NormalizeRoles parses, lower-cases and de-duplicates raw role names while
// keeping their order. Unknown names are reported back.
func NormalizeRoles(raw []string) ([]workflow.Role, []string) {
	seen := make(map[workflow.Role]struct{}, len(raw))
	var roles []workflow.Role
	var unknown []string
	for _, r := range raw {
		role, ok := workflow.ParseRole(r)
		if !ok {
			unknown = append(unknown, r)
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles, unknown
}
