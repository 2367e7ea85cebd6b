package api

import (
	"errors"
	"net/http"

	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
)

// GetManuscriptPayment returns the APC invoice of a manuscript with the latest
// payment evidence. Visible to the submitter and the editorial office.
func (s *Server) GetManuscriptPayment(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	m, err := s.store.GetManuscript(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !isEditorial(c) && !m.IsSubmitter(userID) {
		forbidden(c, "You do not have access to this payment")
		return
	}

	payment, err := s.store.GetPaymentByManuscript(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := models.PaymentWithInfo{Payment: *payment}
	info, err := s.store.LatestPaymentInfo(ctx, payment.ID)
	switch {
	case err == nil:
		out.Info = info
	case !errors.Is(err, store.ErrNotFound):
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SubmitPayment records the author's bank-transfer details for verification.
func (s *Server) SubmitPayment(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, workflow.ActionSubmitPayment)
	if p == nil {
		return
	}

	payment, err := s.store.GetPaymentByManuscript(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	now := s.now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	payment.Status = workflow.PaymentSubmitted
	payment.RejectionReason = ""
	info := &models.PaymentInfo{
		PaymentID:     payment.ID,
		ManuscriptID:  p.m.ID,
		BankName:      req.BankName,
		AccountHolder: req.AccountHolder,
		TransactionID: req.TransactionID,
		ReceiptURL:    req.ReceiptURL,
		AmountPaid:    req.AmountPaid,
		PaidAt:        paidAt,
		Status:        models.PaymentInfoPendingVerification,
	}
	p.m.SetState(p.next)

	t := store.Transition{
		Payment:     payment,
		PaymentInfo: info,
		Events: []models.TimelineEvent{p.event("Payment details submitted", map[string]any{
			"reference":      payment.Reference,
			"amount_paid":    req.AmountPaid,
			"transaction_id": req.TransactionID,
		})},
	}
	if !s.commit(c, p, t, notify.PaymentSubmitted(p.m, s.editorIDs(c))...) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"manuscript": p.m, "payment": models.PaymentWithInfo{Payment: *payment, Info: info}})
}

// GetPayments lists payments for the editorial office, optionally by status.
func (s *Server) GetPayments(c *gin.Context) {
	status := workflow.PaymentStatus(c.Query("status"))
	payments, err := s.store.ListPayments(c.Request.Context(), status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

// AcceptPayment verifies the submitted payment. The payment, its evidence and
// the manuscript are written in one transaction.
func (s *Server) AcceptPayment(c *gin.Context) {
	s.settlePayment(c, workflow.ActionAcceptPayment, "")
}

func (s *Server) RejectPayment(c *gin.Context) {
	var req models.RejectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.settlePayment(c, workflow.ActionRejectPayment, req.Reason)
}

func (s *Server) settlePayment(c *gin.Context, action workflow.Action, reason string) {
	paymentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	p := s.begin(c, payment.ManuscriptID, action)
	if p == nil {
		return
	}

	info, err := s.store.LatestPaymentInfo(ctx, payment.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.respondError(c, err)
		return
	}

	now := s.now()
	outcome := "accepted"
	description := "Payment verified"
	infoStatus := models.PaymentInfoVerified
	payment.Status = workflow.PaymentCompleted
	payment.RejectionReason = ""
	if action == workflow.ActionRejectPayment {
		outcome = "rejected"
		description = "Payment rejected: " + reason
		infoStatus = models.PaymentInfoRejected
		payment.Status = workflow.PaymentRejected
		payment.RejectionReason = reason
	}
	payment.VerifiedBy = &p.actor.ID
	payment.VerifiedAt = &now
	if info != nil {
		info.Status = infoStatus
	}
	p.m.SetState(p.next)

	meta := map[string]any{"reference": payment.Reference}
	if reason != "" {
		meta["reason"] = reason
	}
	t := store.Transition{
		Payment:     payment,
		PaymentInfo: info,
		Events:      []models.TimelineEvent{p.event(description, meta)},
	}
	if !s.commit(c, p, t, notify.PaymentSettled(p.m, payment)...) {
		s.metrics.PaymentSettlements.WithLabelValues("failed").Inc()
		return
	}
	s.metrics.PaymentSettlements.WithLabelValues(outcome).Inc()
	c.JSON(http.StatusOK, gin.H{"manuscript": p.m, "payment": models.PaymentWithInfo{Payment: *payment, Info: info}})
}

// WaivePayment clears the APC. A payment record, if one was opened, is marked
// waived in the same transaction.
func (s *Server) WaivePayment(c *gin.Context) {
	id, ok := manuscriptParam(c)
	if !ok {
		return
	}
	var req models.WaivePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := s.begin(c, id, workflow.ActionWaivePayment)
	if p == nil {
		return
	}

	t := store.Transition{}
	payment, err := s.store.GetPaymentByManuscript(c.Request.Context(), id)
	switch {
	case err == nil:
		now := s.now()
		payment.Status = workflow.PaymentWaived
		payment.RejectionReason = ""
		payment.VerifiedBy = &p.actor.ID
		payment.VerifiedAt = &now
		t.Payment = payment

		// proof awaiting verification is closed out by the waiver
		info, err := s.store.LatestPaymentInfo(c.Request.Context(), payment.ID)
		switch {
		case err == nil && info.Status == models.PaymentInfoPendingVerification:
			info.Status = models.PaymentInfoRejected
			t.PaymentInfo = info
		case err != nil && !errors.Is(err, store.ErrNotFound):
			s.respondError(c, err)
			return
		}
	case !errors.Is(err, store.ErrNotFound):
		s.respondError(c, err)
		return
	}
	p.m.SetState(p.next)

	t.Events = []models.TimelineEvent{p.event("Article processing charge waived", map[string]any{"reason": req.Reason})}
	if !s.commit(c, p, t, notify.PaymentWaived(p.m)...) {
		return
	}
	s.metrics.PaymentSettlements.WithLabelValues("waived").Inc()
	respondTransition(c, p)
}
