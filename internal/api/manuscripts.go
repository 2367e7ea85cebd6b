package api

import (
	"net/http"
	"strconv"

	"journal-backend/internal/ids"
	"journal-backend/internal/logging"
	"journal-backend/internal/middleware"
	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Server) CreateManuscript(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateManuscriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := s.now()
	m := models.Manuscript{
		SubmissionNumber: ids.SubmissionNumber(now),
		Title:            req.Title,
		Abstract:         req.Abstract,
		Keywords:         req.Keywords,
		Authors:          req.Authors,
		SubmittedBy:      userID,
		ManuscriptURL:    req.ManuscriptURL,
		CoverLetter:      req.CoverLetter,
		APCAmount:        s.config.Journal.DefaultAPC,
	}
	initial := workflow.Initial()
	initial.RequiresPayment = m.APCAmount > 0
	m.SetState(initial)
	if m.Keywords == nil {
		m.Keywords = []string{}
	}

	ev := models.TimelineEvent{
		Event:       "submitted",
		Description: "Manuscript submitted",
		PerformedBy: userID,
		Metadata:    map[string]any{"submission_number": m.SubmissionNumber},
	}
	if err := s.store.CreateManuscript(c.Request.Context(), &m, ev); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info("manuscript submitted",
		zap.String(logging.FieldManuscriptID, m.ID.String()),
		zap.String("submission_number", m.SubmissionNumber),
	)
	s.dispatch(c, notify.Submitted(&m, s.editorIDs(c))...)
	respondManuscript(c, http.StatusCreated, &m, workflow.RoleAuthor)
}

// GetManuscripts lists manuscripts scoped by the caller's active role: authors
// see their own, reviewers the ones they review, copy-editors their
// assignments and editors everything.
func (s *Server) GetManuscripts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	filter := models.ManuscriptFilter{Status: workflow.Status(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(c, "Unknown status: "+string(filter.Status))
		return
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil && limit > 0 && limit <= 500 {
		filter.Limit = limit
	}

	switch activeRole(c) {
	case workflow.RoleEditor, workflow.RoleAdmin:
	case workflow.RoleReviewer:
		filter.ReviewerID = &userID
	case workflow.RoleCopyEditor:
		filter.CopyEditorID = &userID
	default:
		filter.SubmittedBy = &userID
	}

	manuscripts, err := s.store.ListManuscripts(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, manuscripts)
}

func (s *Server) GetManuscript(c *gin.Context) {
	m, role, ok := s.visibleManuscript(c)
	if !ok {
		return
	}
	respondManuscript(c, http.StatusOK, m, role)
}

func (s *Server) GetTimeline(c *gin.Context) {
	m, _, ok := s.visibleManuscript(c)
	if !ok {
		return
	}
	events, err := s.store.Timeline(c.Request.Context(), m.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetManuscriptReviews returns the reviews of one manuscript. Authors only see
// completed reviews, without reviewer identity or confidential comments.
func (s *Server) GetManuscriptReviews(c *gin.Context) {
	m, role, ok := s.visibleManuscript(c)
	if !ok {
		return
	}
	userID, _ := currentUserID(c)

	filter := models.ReviewFilter{ManuscriptID: &m.ID}
	if role == workflow.RoleReviewer {
		filter.ReviewerID = &userID
	}
	reviews, err := s.store.ListReviews(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if role == workflow.RoleAuthor {
		visible := []models.Review{}
		for _, r := range reviews {
			if r.IsCompleted() {
				visible = append(visible, r.AuthorView())
			}
		}
		reviews = visible
	}
	c.JSON(http.StatusOK, reviews)
}

// visibleManuscript loads the manuscript named by :id and resolves the role
// under which the caller may see it.
func (s *Server) visibleManuscript(c *gin.Context) (*models.Manuscript, workflow.Role, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, "", false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, "", false
	}
	ctx := c.Request.Context()
	m, err := s.store.GetManuscript(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return nil, "", false
	}

	active := activeRole(c)
	var candidates []workflow.Role
	if middleware.HasRole(c, workflow.RoleAdmin) {
		candidates = append(candidates, workflow.RoleAdmin)
	}
	if middleware.HasRole(c, workflow.RoleEditor) {
		candidates = append(candidates, workflow.RoleEditor)
	}
	if middleware.HasRole(c, workflow.RoleAuthor) && m.IsSubmitter(userID) {
		candidates = append(candidates, workflow.RoleAuthor)
	}
	if middleware.HasRole(c, workflow.RoleCopyEditor) && m.IsCopyEditor(userID) {
		candidates = append(candidates, workflow.RoleCopyEditor)
	}
	if middleware.HasRole(c, workflow.RoleReviewer) {
		reviews, err := s.store.ListReviews(ctx, models.ReviewFilter{ManuscriptID: &m.ID, ReviewerID: &userID})
		if err != nil {
			s.respondError(c, err)
			return nil, "", false
		}
		for _, r := range reviews {
			if r.Status != models.ReviewDeclined {
				candidates = append(candidates, workflow.RoleReviewer)
				break
			}
		}
	}

	if len(candidates) == 0 {
		forbidden(c, "You do not have access to this manuscript")
		return nil, "", false
	}
	for _, r := range candidates {
		if r == active {
			return m, r, true
		}
	}
	return m, candidates[0], true
}

// activeRole is the role from the token, or the first held role when the
// token carries none.
func activeRole(c *gin.Context) workflow.Role {
	if r := middleware.ActiveRole(c); r != "" && middleware.HasRole(c, r) {
		return r
	}
	if roles := middleware.Roles(c); len(roles) > 0 {
		return roles[0]
	}
	return workflow.RoleAuthor
}

// manuscriptParam parses :id for workflow handlers.
func manuscriptParam(c *gin.Context) (uuid.UUID, bool) {
	return pathID(c, "id")
}
