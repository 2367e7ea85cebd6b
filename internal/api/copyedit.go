package api

import (
	"errors"
	"net/http"
	"time"

	"journal-backend/internal/ids"
	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (s *Server) AssignCopyEditor(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.AssignCopyEditorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, workflow.ActionAssignCopyEditor)
	if p == nil {
		return
	}

	editor, err := s.store.GetUserByID(c.Request.Context(), req.CopyEditorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			badRequest(c, "Copy-editor not found")
			return
		}
		s.respondError(c, err)
		return
	}
	if !editor.HasRole(workflow.RoleCopyEditor) {
		badRequest(c, "User is not a copy-editor")
		return
	}

	// A new assignment replaces any earlier one and its review trail.
	p.m.CopyEditorAssignment = &models.CopyEditorAssignment{
		CopyEditorID: editor.ID,
		AssignedBy:   p.actor.ID,
		AssignedAt:   s.now(),
		DueDate:      req.DueDate,
		Instructions: req.Instructions,
		GalleyProofs: []models.GalleyProof{},
	}
	p.m.AuthorCopyEditReview = nil
	p.m.CopyEditReview = nil
	p.m.SetState(p.next)

	meta := map[string]any{"copy_editor_id": editor.ID.String()}
	if req.DueDate != nil {
		meta["due_date"] = req.DueDate.Format(time.RFC3339)
	}
	t := store.Transition{Events: []models.TimelineEvent{p.event("Copy-editor assigned: "+editor.Name, meta)}}
	if !s.commit(c, p, t, notify.CopyEditorAssigned(p.m, s.now())...) {
		return
	}
	respondTransition(c, p)
}

func (s *Server) StartCopyEdit(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	p := s.begin(c, id, workflow.ActionStartCopyEdit)
	if p == nil {
		return
	}
	p.m.SetState(p.next)

	t := store.Transition{Events: []models.TimelineEvent{p.event("Copy-editing started", nil)}}
	if !s.commit(c, p, t) {
		return
	}
	respondTransition(c, p)
}

// SubmitCopyEdit hands the copy-edited draft to the author, either as a galley
// proof or as a completed edit.
func (s *Server) SubmitCopyEdit(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.SubmitCopyEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := workflow.ActionCompleteCopyEdit
	completion := workflow.AssignmentCompleted
	if req.CompletionStatus == string(workflow.AssignmentGalleySubmitted) {
		action = workflow.ActionSubmitGalley
		completion = workflow.AssignmentGalleySubmitted
		if req.GalleyProofURL == "" {
			badRequest(c, "galley_proof_url is required when submitting a galley")
			return
		}
	}

	p := s.begin(c, id, action)
	if p == nil {
		return
	}

	now := s.now()
	a := p.m.CopyEditorAssignment
	if req.GalleyProofURL != "" {
		a.GalleyProofs = append(a.GalleyProofs, models.GalleyProof{
			URL:        req.GalleyProofURL,
			Version:    len(a.GalleyProofs) + 1,
			Notes:      req.Notes,
			UploadedBy: p.actor.ID,
			UploadedAt: now,
		})
	}
	a.AuthorApproval = nil
	p.m.CopyEditReview = &models.CopyEditReview{
		CompletionStatus: completion,
		GalleyProofURL:   req.GalleyProofURL,
		Notes:            req.Notes,
		SubmittedAt:      now,
	}
	p.m.AuthorCopyEditReview = nil
	p.m.SetState(p.next)

	meta := map[string]any{"completion_status": string(completion)}
	if req.GalleyProofURL != "" {
		meta["galley_proof_url"] = req.GalleyProofURL
		meta["galley_version"] = len(a.GalleyProofs)
	}
	t := store.Transition{Events: []models.TimelineEvent{p.event("Copy-edited draft sent to author", meta)}}
	if !s.commit(c, p, t, notify.GalleyReady(p.m)...) {
		return
	}
	respondTransition(c, p)
}

// AuthorApproveCopyEdit records the author's verdict on the copy-edited draft.
// Approval moves it to copy-editor confirmation; rejection sends it back.
func (s *Server) AuthorApproveCopyEdit(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.AuthorCopyEditApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	approved := *req.Approved

	action := workflow.ActionAuthorApproveCopyEdit
	description := "Author approved the copy-edited draft"
	if !approved {
		action = workflow.ActionAuthorRejectCopyEdit
		description = "Author requested changes to the copy-edited draft"
	}

	p := s.begin(c, id, action)
	if p == nil {
		return
	}

	now := s.now()
	p.m.AuthorCopyEditReview = &models.AuthorCopyEditReview{
		Approved:   approved,
		Comments:   req.Comments,
		ReviewedAt: now,
	}
	p.m.CopyEditorAssignment.AuthorApproval = &models.AuthorApproval{
		Approved:   approved,
		Comments:   req.Comments,
		ApprovedAt: now,
	}
	p.m.SetState(p.next)

	t := store.Transition{Events: []models.TimelineEvent{p.event(description, map[string]any{
		"approved": approved,
		"comments": req.Comments,
	})}}
	if !s.commit(c, p, t, notify.AuthorReviewedCopyEdit(p.m, approved)...) {
		return
	}
	respondTransition(c, p)
}

// ConfirmCopyEdit closes copy-editing. When an unpaid APC is due the payment
// record is opened in the same transaction.
func (s *Server) ConfirmCopyEdit(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.ConfirmCopyEditRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	p := s.begin(c, id, workflow.ActionConfirmCopyEdit)
	if p == nil {
		return
	}

	now := s.now()
	p.m.CopyEditorAssignment.CopyEditorConfirmation = &models.CopyEditorConfirmation{
		Confirmed:   true,
		Comments:    req.Comments,
		ConfirmedAt: now,
	}
	p.m.SetState(p.next)

	t := store.Transition{}
	meta := map[string]any{}
	if p.next.Status == workflow.StatusPaymentRequired {
		t.Payment = &models.Payment{
			ManuscriptID: p.m.ID,
			AuthorID:     p.m.SubmittedBy,
			Amount:       p.m.APCAmount,
			Currency:     s.config.Journal.Currency,
			Reference:    ids.PaymentReference(now),
			Status:       workflow.PaymentPending,
		}
		meta["apc_amount"] = p.m.APCAmount
	}
	t.Events = []models.TimelineEvent{p.event("Copy-editing confirmed", meta)}

	if !s.commit(c, p, t, notify.CopyEditConfirmed(p.m, t.Payment, s.editorIDs(c))...) {
		return
	}
	respondTransition(c, p)
}
