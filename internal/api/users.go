package api

import (
	"errors"
	"net/http"
	"strings"

	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetUsers is the directory editors use to pick reviewers and copy-editors.
func (s *Server) GetUsers(c *gin.Context) {
	var role workflow.Role
	if raw := c.Query("role"); raw != "" {
		parsed, ok := workflow.ParseRole(raw)
		if !ok {
			badRequest(c, "Unknown role: "+raw)
			return
		}
		role = parsed
	}
	users, err := s.store.ListUsers(c.Request.Context(), role)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// UpdateUserRoles overwrites a user's role list. Granting or revoking admin
// is reserved for founders.
func (s *Server) UpdateUserRoles(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roles, unknown := models.NormalizeRoles(req.Roles)
	if len(unknown) > 0 {
		badRequest(c, "Unknown roles: "+strings.Join(unknown, ", "))
		return
	}

	ctx := c.Request.Context()
	target, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	grantsAdmin := false
	for _, r := range roles {
		if r == workflow.RoleAdmin {
			grantsAdmin = true
		}
	}
	if grantsAdmin != target.IsAdmin() {
		caller, err := s.store.GetUserByID(ctx, callerID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if !caller.IsFounder {
			forbidden(c, "Only founders can grant or revoke the admin role")
			return
		}
		if target.IsFounder && !grantsAdmin {
			forbidden(c, "Founders keep the admin role")
			return
		}
	}

	user, err := s.store.SetRoles(ctx, targetID, roles, req.Designation, req.DesignationRole)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("user roles updated",
		zap.String("target_id", targetID.String()),
		zap.String("by", callerID.String()),
		zap.Any("roles", roles),
	)
	c.JSON(http.StatusOK, user)
}

func (s *Server) DeleteUser(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if targetID == callerID {
		badRequest(c, "You cannot delete your own account")
		return
	}
	ctx := c.Request.Context()
	target, err := s.store.GetUserByID(ctx, targetID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if target.IsFounder {
		forbidden(c, "Founder accounts cannot be deleted")
		return
	}
	if err := s.store.DeleteUser(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrInUse) {
			c.JSON(http.StatusConflict, gin.H{"error": "User has manuscripts, reviews or payments and cannot be deleted"})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
