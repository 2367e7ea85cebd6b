package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"journal-backend/internal/auth"
	"journal-backend/internal/config"
	"journal-backend/internal/metrics"
	"journal-backend/internal/middleware"
	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/storage"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier delivers notifications after a transition has been saved.
type Notifier interface {
	Dispatch(ctx context.Context, msgs ...notify.Message)
}

type Server struct {
	store      store.Store
	jwtManager *auth.JWTManager
	config     *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	notifier   Notifier
	files      storage.Storage
	now        func() time.Time
}

// Deps are the collaborators a Server needs. Logger, Metrics, Notifier and
// Files may be nil.
type Deps struct {
	Store    store.Store
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Notifier Notifier
	Files    storage.Storage
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:      d.Store,
		jwtManager: auth.NewJWTManager(d.Config),
		config:     d.Config,
		logger:     d.Logger,
		metrics:    d.Metrics,
		notifier:   d.Notifier,
		files:      d.Files,
		now:        store.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Auth Handlers
func (s *Server) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:             strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:      hashedPassword,
		Name:              req.Name,
		Roles:             []workflow.Role{workflow.RoleAuthor},
		CurrentActiveRole: workflow.RoleAuthor,
		Affiliation:       req.Affiliation,
	}
	// The configured founder account bootstraps the editorial office.
	if founder := s.config.Journal.FounderEmail; founder != "" && strings.EqualFold(founder, user.Email) {
		user.IsFounder = true
		user.Roles = []workflow.Role{workflow.RoleAdmin, workflow.RoleEditor, workflow.RoleAuthor}
		user.CurrentActiveRole = workflow.RoleAdmin
	}

	if err := s.store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		s.respondError(c, err)
		return
	}

	token, err := s.jwtManager.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, models.LoginResponse{User: user, Token: token})
}

func (s *Server) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		s.respondError(c, err)
		return
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := s.jwtManager.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{User: *user, Token: token})
}

func (s *Server) GetProfile(c *gin.Context) {
	id, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := s.store.GetUserByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) UpdateProfile(c *gin.Context) {
	id, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.store.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) ChangePassword(c *gin.Context) {
	id, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !auth.CheckPassword(req.OldPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid old password"})
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash new password"})
		return
	}

	if err := s.store.UpdatePassword(ctx, id, newHash); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// SwitchRole changes the role the user acts in and returns a fresh token
// carrying it.
func (s *Server) SwitchRole(c *gin.Context) {
	id, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, valid := workflow.ParseRole(req.Role)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role: " + req.Role})
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !user.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not hold the role " + string(role)})
		return
	}
	if err := s.store.SetActiveRole(ctx, id, role); err != nil {
		s.respondError(c, err)
		return
	}
	user.CurrentActiveRole = role

	token, err := s.jwtManager.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, models.LoginResponse{User: *user, Token: token})
}

// currentUserID reads the authenticated user id, replying 401 when absent.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(middleware.ContextUserID)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a uuid path parameter, replying 400 when malformed.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	return parseUUID(c, c.Param(name), name)
}

func parseUUID(c *gin.Context, raw, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// isEditorial reports whether the caller holds an editor or admin role.
func isEditorial(c *gin.Context) bool {
	return middleware.HasRole(c, workflow.RoleEditor) || middleware.HasRole(c, workflow.RoleAdmin)
}

// bindOptionalJSON binds the body when one was sent. An empty body leaves req
// at its zero value.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
