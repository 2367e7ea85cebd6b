package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"journal-backend/internal/logging"
	"journal-backend/internal/middleware"
	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

// actor is the authenticated caller and the role they act under.
type actor struct {
	ID   uuid.UUID
	Role workflow.Role
}

// pending is a transition that passed authorization and the state machine
// but has not been saved yet.
type pending struct {
	action workflow.Action
	actor  actor
	m      *models.Manuscript
	from   workflow.State
	next   workflow.State
}

// ownership lists the actions that additionally require a relationship with
// the manuscript beyond holding the role.
var ownership = map[workflow.Action]func(m *models.Manuscript, userID uuid.UUID) bool{
	workflow.ActionSubmitRevision:        (*models.Manuscript).IsSubmitter,
	workflow.ActionAuthorApproveCopyEdit: (*models.Manuscript).IsSubmitter,
	workflow.ActionAuthorRejectCopyEdit:  (*models.Manuscript).IsSubmitter,
	workflow.ActionSubmitPayment:         (*models.Manuscript).IsSubmitter,
	workflow.ActionStartCopyEdit:         (*models.Manuscript).IsCopyEditor,
	workflow.ActionSubmitGalley:          (*models.Manuscript).IsCopyEditor,
	workflow.ActionCompleteCopyEdit:      (*models.Manuscript).IsCopyEditor,
	workflow.ActionConfirmCopyEdit:       (*models.Manuscript).IsCopyEditor,
}

// begin authorizes action on the manuscript and runs it through the state
// machine. On failure the response has been written and nil is returned.
func (s *Server) begin(c *gin.Context, manuscriptID uuid.UUID, action workflow.Action) *pending {
	userID, ok := currentUserID(c)
	if !ok {
		return nil
	}
	role, ok := workflow.ActingRole(action, middleware.ActiveRole(c), middleware.Roles(c))
	if !ok {
		s.refused(action, "role")
		forbidden(c, "Insufficient permissions")
		return nil
	}

	m, err := s.store.GetManuscript(c.Request.Context(), manuscriptID)
	if err != nil {
		s.respondError(c, err)
		return nil
	}

	if owns, ok := ownership[action]; ok && !owns(m, userID) {
		s.refused(action, "ownership")
		forbidden(c, "You are not assigned to this manuscript")
		return nil
	}

	from := m.State()
	next, err := workflow.Apply(action, role, from)
	if err != nil {
		reason := "state"
		if errors.Is(err, workflow.ErrForbidden) {
			reason = "role"
		}
		s.refused(action, reason)
		s.respondError(c, err)
		return nil
	}
	return &pending{action: action, actor: actor{ID: userID, Role: role}, m: m, from: from, next: next}
}

// event builds the timeline entry for the pending transition.
func (p *pending) event(description string, metadata map[string]any) models.TimelineEvent {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["role"] = string(p.actor.Role)
	if p.from.Status != p.next.Status {
		metadata["from_status"] = string(p.from.Status)
		metadata["to_status"] = string(p.next.Status)
	}
	return models.TimelineEvent{
		Event:       string(p.action),
		Description: description,
		PerformedBy: p.actor.ID,
		Metadata:    metadata,
	}
}

// commit saves the unit of work, records metrics and hands the notifications
// to the dispatcher. On failure the response has been written.
func (s *Server) commit(c *gin.Context, p *pending, t store.Transition, msgs ...notify.Message) bool {
	t.Manuscript = p.m
	if err := s.store.SaveTransition(c.Request.Context(), t); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.refused(p.action, "conflict")
		}
		s.respondError(c, err)
		return false
	}
	s.metrics.Transitions.WithLabelValues(string(p.action)).Inc()
	s.logger.Info("manuscript transition",
		zap.String(logging.FieldManuscriptID, p.m.ID.String()),
		zap.String(logging.FieldUserID, p.actor.ID.String()),
		zap.String(logging.FieldAction, string(p.action)),
		zap.String(logging.FieldRole, string(p.actor.Role)),
		zap.String("status", string(p.m.Status)),
	)
	s.dispatch(c, msgs...)
	return true
}

func (s *Server) dispatch(c *gin.Context, msgs ...notify.Message) {
	if s.notifier != nil && len(msgs) > 0 {
		s.notifier.Dispatch(c.Request.Context(), msgs...)
	}
}

func (s *Server) refused(action workflow.Action, reason string) {
	s.metrics.TransitionsRefused.WithLabelValues(string(action), reason).Inc()
}

// editorIDs returns everyone holding the editor role, for fan-out notifications.
func (s *Server) editorIDs(c *gin.Context) []uuid.UUID {
	editors, err := s.store.ListUsers(c.Request.Context(), workflow.RoleEditor)
	if err != nil {
		s.logger.Warn("list editors for notification", zap.Error(err))
		return nil
	}
	ids := make([]uuid.UUID, 0, len(editors))
	for _, e := range editors {
		ids = append(ids, e.ID)
	}
	return ids
}

// respondManuscript writes the manuscript along with the actions the caller can
// take next.
func respondManuscript(c *gin.Context, status int, m *models.Manuscript, role workflow.Role) {
	c.JSON(status, gin.H{
		"manuscript":        m,
		"available_actions": nonNil(workflow.Available(role, m.State())),
	})
}

func nonNil(actions []workflow.Action) []workflow.Action {
	if actions == nil {
		return []workflow.Action{}
	}
	return actions
}

func respondTransition(c *gin.Context, p *pending) {
	respondManuscript(c, http.StatusOK, p.m, p.actor.Role)
}
