package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

const defaultReviewPeriod = 21 * 24 * time.Hour

func (s *Server) AssignReviewer(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, workflow.ActionAssignReviewer)
	if p == nil {
		return
	}

	reviewer, err := s.store.GetUserByID(c.Request.Context(), req.ReviewerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			badRequest(c, "Reviewer not found")
			return
		}
		s.respondError(c, err)
		return
	}
	if !reviewer.HasRole(workflow.RoleReviewer) {
		badRequest(c, "User is not a reviewer")
		return
	}
	if p.m.IsSubmitter(reviewer.ID) {
		badRequest(c, "Authors cannot review their own manuscript")
		return
	}

	due := req.DueDate
	if due == nil {
		d := s.now().Add(defaultReviewPeriod)
		due = &d
	}
	review := &models.Review{
		ManuscriptID: p.m.ID,
		ReviewerID:   reviewer.ID,
		AssignedBy:   p.actor.ID,
		Round:        p.m.RevisionNumber,
		Status:       models.ReviewPending,
		DueDate:      due,
	}

	p.m.SetState(p.next)
	t := store.Transition{
		InsertReview: review,
		Events: []models.TimelineEvent{p.event("Reviewer assigned: "+reviewer.Name, map[string]any{
			"reviewer_id": reviewer.ID.String(),
			"due_date":    due.Format(time.RFC3339),
		})},
	}
	if !s.commit(c, p, t, notify.ReviewRequested(p.m, review, s.now())...) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"manuscript": p.m, "review": review})
}

// GetReviews lists the caller's reviews; editors may pass manuscript_id and
// status to browse all reviews.
func (s *Server) GetReviews(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter := models.ReviewFilter{Status: c.Query("status")}
	if isEditorial(c) && activeRole(c) != workflow.RoleReviewer {
		if raw := c.Query("manuscript_id"); raw != "" {
			mid, ok := parseUUID(c, raw, "manuscript_id")
			if !ok {
				return
			}
			filter.ManuscriptID = &mid
		}
	} else {
		filter.ReviewerID = &userID
	}

	reviews, err := s.store.ListReviews(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// RespondToReview records whether the reviewer accepts the invitation.
func (s *Server) RespondToReview(c *gin.Context) {
	review, ok := s.ownReview(c)
	if !ok {
		return
	}
	var req models.RespondReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if review.Status != models.ReviewPending {
		badRequest(c, "Invitation already answered")
		return
	}

	status := models.ReviewDeclined
	if *req.Accept {
		status = models.ReviewAccepted
	}
	if err := s.store.UpdateReviewStatus(c.Request.Context(), review.ID, status); err != nil {
		s.respondError(c, err)
		return
	}
	review.Status = status
	c.JSON(http.StatusOK, review)
}

// SubmitReview stores the reviewer's recommendation. The manuscript status is
// unchanged; the editor decides afterwards.
func (s *Server) SubmitReview(c *gin.Context) {
	review, ok := s.ownReview(c)
	if !ok {
		return
	}
	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !review.IsOpen() {
		badRequest(c, "Review is not open for submission")
		return
	}

	p := s.begin(c, review.ManuscriptID, workflow.ActionSubmitReview)
	if p == nil {
		return
	}
	if review.Round != p.m.RevisionNumber {
		badRequest(c, "Review belongs to an earlier revision round")
		return
	}

	now := s.now()
	ratings := req.Ratings
	review.Status = models.ReviewCompleted
	review.Recommendation = req.Recommendation
	review.Ratings = &ratings
	review.CommentsToAuthor = req.CommentsToAuthor
	review.ConfidentialComments = req.ConfidentialComments
	review.SubmittedAt = &now

	p.m.SetState(p.next)
	t := store.Transition{
		UpdateReview: review,
		Events: []models.TimelineEvent{p.event("Review submitted", map[string]any{
			"review_id":      review.ID.String(),
			"recommendation": review.Recommendation,
		})},
	}
	if !s.commit(c, p, t, notify.ReviewSubmitted(p.m, review)...) {
		return
	}
	c.JSON(http.StatusOK, review)
}

// MakeDecision records the editor's verdict after review.
func (s *Server) MakeDecision(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := map[string]workflow.Action{
		"accept":   workflow.ActionAccept,
		"revision": workflow.ActionRequestRevision,
		"reject":   workflow.ActionReject,
	}[req.Decision]

	p := s.begin(c, id, action)
	if p == nil {
		return
	}

	meta := map[string]any{"decision": req.Decision}
	if action == workflow.ActionAccept && req.APCAmount != nil && !p.next.PaymentStatus.Settled() {
		p.m.APCAmount = *req.APCAmount
		p.next.RequiresPayment = *req.APCAmount > 0
		meta["apc_amount"] = *req.APCAmount
	}
	p.m.SetState(p.next)

	t := store.Transition{Events: []models.TimelineEvent{p.event(decisionText(req.Decision, req.Comments), meta)}}
	if !s.commit(c, p, t, notify.Decision(p.m, req.Comments)...) {
		return
	}
	respondTransition(c, p)
}

func decisionText(decision, comments string) string {
	text := map[string]string{
		"accept":   "Manuscript accepted",
		"revision": "Revision requested",
		"reject":   "Manuscript rejected",
	}[decision]
	if comments = strings.TrimSpace(comments); comments != "" {
		text += ": " + comments
	}
	return text
}

func (s *Server) SubmitRevision(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, workflow.ActionSubmitRevision)
	if p == nil {
		return
	}

	p.m.RevisionNumber++
	p.m.ManuscriptURL = req.ManuscriptURL
	p.m.SetState(p.next)

	t := store.Transition{Events: []models.TimelineEvent{p.event("Revised manuscript submitted", map[string]any{
		"revision_number":       p.m.RevisionNumber,
		"manuscript_url":        req.ManuscriptURL,
		"response_to_reviewers": req.ResponseToReviewers,
	})}}
	if !s.commit(c, p, t, notify.RevisionSubmitted(p.m, s.editorIDs(c))...) {
		return
	}
	respondTransition(c, p)
}

// ownReview loads the review named by :id and checks the caller is its reviewer.
func (s *Server) ownReview(c *gin.Context) (*models.Review, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	review, err := s.store.GetReview(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if review.ReviewerID != userID {
		forbidden(c, "This review is assigned to someone else")
		return nil, false
	}
	return review, true
}
