package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"journal-backend/internal/auth"
	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID     = "user_id"
	ContextEmail      = "email"
	ContextRoles      = "roles"
	ContextActiveRole = "active_role"
)

// UserLookup loads the caller's current account row.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware validates the bearer token and then reloads the user, so
// roles revoked or accounts deleted after the token was issued take effect
// on the next request.
func AuthMiddleware(jwtManager *auth.JWTManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		id, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		user, err := users.GetUserByID(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
			return
		}

		c.Set(ContextUserID, user.ID.String())
		c.Set(ContextEmail, user.Email)
		c.Set(ContextRoles, user.Roles)
		c.Set(ContextActiveRole, user.ActiveRole())
		c.Next()
	}
}

// Roles returns the role set stored by AuthMiddleware.
func Roles(c *gin.Context) []workflow.Role {
	v, ok := c.Get(ContextRoles)
	if !ok {
		return nil
	}
	roles, _ := v.([]workflow.Role)
	return roles
}

func ActiveRole(c *gin.Context) workflow.Role {
	v, _ := c.Get(ContextActiveRole)
	role, _ := v.(workflow.Role)
	return role
}

func HasRole(c *gin.Context, role workflow.Role) bool {
	for _, r := range Roles(c) {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRoles lets the request through when the caller holds any of roles.
func RequireRoles(roles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range roles {
			if HasRole(c, r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

func AdminOnly() gin.HandlerFunc {
	return RequireRoles(workflow.RoleAdmin)
}

func EditorOrAdmin() gin.HandlerFunc {
	return RequireRoles(workflow.RoleEditor, workflow.RoleAdmin)
}

func AuthorOnly() gin.HandlerFunc {
	return RequireRoles(workflow.RoleAuthor)
}
