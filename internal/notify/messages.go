package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

// Notification types stored with in-app notifications.
const (
	TypeSubmission      = "submission"
	TypeReviewRequest   = "review-request"
	TypeReviewSubmitted = "review-submitted"
	TypeDecision        = "decision"
	TypeRevision        = "revision"
	TypeCopyEdit        = "copy-edit"
	TypePayment         = "payment"
	TypePublication     = "publication"
	TypeReminder        = "reminder"
)

func ref(m *models.Manuscript) *uuid.UUID {
	id := m.ID
	return &id
}

func title(m *models.Manuscript) string {
	return fmt.Sprintf("%q (%s)", m.Title, m.SubmissionNumber)
}

// dueText renders a due date relative to now, e.g. "due 2 weeks from now".
func dueText(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	return " It is due " + humanize.RelTime(*due, now, "ago", "from now") + " (" + due.Format("2 Jan 2006") + ")."
}

func Submitted(m *models.Manuscript, editors []uuid.UUID) []Message {
	msgs := []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypeSubmission,
		Subject: "Submission received: " + m.Title,
		Body:    fmt.Sprintf("Your manuscript %s has been received and will be assessed by the editorial office.", title(m)),
	}}
	for _, id := range editors {
		msgs = append(msgs, Message{
			UserID: id, ManuscriptID: ref(m), Type: TypeSubmission,
			Subject: "New submission: " + m.Title,
			Body:    fmt.Sprintf("A new manuscript %s is waiting for reviewer assignment.", title(m)),
		})
	}
	return msgs
}

func ReviewRequested(m *models.Manuscript, r *models.Review, now time.Time) []Message {
	return []Message{{
		UserID: r.ReviewerID, ManuscriptID: ref(m), Type: TypeReviewRequest,
		Subject: "Review invitation: " + m.Title,
		Body:    fmt.Sprintf("You have been invited to review %s.%s", title(m), dueText(r.DueDate, now)),
	}}
}

func ReviewSubmitted(m *models.Manuscript, r *models.Review) []Message {
	return []Message{{
		UserID: r.AssignedBy, ManuscriptID: ref(m), Type: TypeReviewSubmitted,
		Subject: "Review submitted: " + m.Title,
		Body:    fmt.Sprintf("A review recommending %q has been submitted for %s.", r.Recommendation, title(m)),
	}}
}

func Decision(m *models.Manuscript, comments string) []Message {
	var verdict string
	switch m.Status {
	case workflow.StatusAccepted:
		verdict = "accepted for publication"
	case workflow.StatusRevisionRequested:
		verdict = "returned to you for revision"
	case workflow.StatusRejected:
		verdict = "not accepted for publication"
	default:
		verdict = string(m.Status)
	}
	body := fmt.Sprintf("Your manuscript %s has been %s.", title(m), verdict)
	if strings.TrimSpace(comments) != "" {
		body += "\n\nEditor comments:\n" + comments
	}
	return []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypeDecision,
		Subject: "Decision on " + m.Title, Body: body,
	}}
}

func RevisionSubmitted(m *models.Manuscript, editors []uuid.UUID) []Message {
	var msgs []Message
	for _, id := range editors {
		msgs = append(msgs, Message{
			UserID: id, ManuscriptID: ref(m), Type: TypeRevision,
			Subject: "Revision received: " + m.Title,
			Body:    fmt.Sprintf("Revision %d of %s has been submitted.", m.RevisionNumber, title(m)),
		})
	}
	return msgs
}

func CopyEditorAssigned(m *models.Manuscript, now time.Time) []Message {
	a := m.CopyEditorAssignment
	return []Message{
		{
			UserID: a.CopyEditorID, ManuscriptID: ref(m), Type: TypeCopyEdit,
			Subject: "Copy-editing assignment: " + m.Title,
			Body:    fmt.Sprintf("You have been assigned to copy-edit %s.%s", title(m), dueText(a.DueDate, now)),
		},
		{
			UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypeCopyEdit,
			Subject: "Copy-editing started: " + m.Title,
			Body:    fmt.Sprintf("Your manuscript %s has moved to copy-editing.", title(m)),
		},
	}
}

func GalleyReady(m *models.Manuscript) []Message {
	return []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypeCopyEdit,
		Subject: "Please review the copy-edited draft: " + m.Title,
		Body:    fmt.Sprintf("The copy-edited version of %s is ready. Please approve it or request changes.", title(m)),
	}}
}

func AuthorReviewedCopyEdit(m *models.Manuscript, approved bool) []Message {
	verdict := "approved"
	if !approved {
		verdict = "requested changes to"
	}
	return []Message{{
		UserID: m.CopyEditorAssignment.CopyEditorID, ManuscriptID: ref(m), Type: TypeCopyEdit,
		Subject: "Author response on " + m.Title,
		Body:    fmt.Sprintf("The author has %s the copy-edited draft of %s.", verdict, title(m)),
	}}
}

func CopyEditConfirmed(m *models.Manuscript, p *models.Payment, editors []uuid.UUID) []Message {
	var msgs []Message
	if m.Status == workflow.StatusPaymentRequired && p != nil {
		msgs = append(msgs, Message{
			UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypePayment,
			Subject: "Article processing charge due: " + m.Title,
			Body: fmt.Sprintf("Copy-editing of %s is complete. An article processing charge of %s %s is due. "+
				"Please quote reference %s with your transfer.", title(m), humanize.CommafWithDigits(p.Amount, 2), p.Currency, p.Reference),
		})
	}
	for _, id := range editors {
		msgs = append(msgs, Message{
			UserID: id, ManuscriptID: ref(m), Type: TypeCopyEdit,
			Subject: "Copy-editing confirmed: " + m.Title,
			Body:    fmt.Sprintf("Copy-editing of %s has been confirmed. Status: %s.", title(m), m.Status),
		})
	}
	return msgs
}

func PaymentSubmitted(m *models.Manuscript, editors []uuid.UUID) []Message {
	var msgs []Message
	for _, id := range editors {
		msgs = append(msgs, Message{
			UserID: id, ManuscriptID: ref(m), Type: TypePayment,
			Subject: "Payment awaiting verification: " + m.Title,
			Body:    fmt.Sprintf("The author of %s has submitted payment details for verification.", title(m)),
		})
	}
	return msgs
}

func PaymentSettled(m *models.Manuscript, p *models.Payment) []Message {
	body := fmt.Sprintf("Your payment for %s has been verified. The manuscript is now in production.", title(m))
	if p.Status == workflow.PaymentRejected {
		body = fmt.Sprintf("Your payment for %s could not be verified: %s. Please submit the payment details again.",
			title(m), p.RejectionReason)
	}
	return []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypePayment,
		Subject: "Payment update: " + m.Title, Body: body,
	}}
}

func PaymentWaived(m *models.Manuscript) []Message {
	return []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypePayment,
		Subject: "Article processing charge waived: " + m.Title,
		Body:    fmt.Sprintf("The article processing charge for %s has been waived.", title(m)),
	}}
}

func Published(m *models.Manuscript, v *models.Volume, is *models.Issue) []Message {
	where := ""
	if v != nil && is != nil {
		where = fmt.Sprintf(" in volume %d, issue %d", v.Number, is.Number)
	}
	return []Message{{
		UserID: m.SubmittedBy, ManuscriptID: ref(m), Type: TypePublication,
		Subject: "Published: " + m.Title,
		Body:    fmt.Sprintf("Your article %s has been published%s.", title(m), where),
	}}
}

func ReviewOverdue(m *models.Manuscript, r *models.Review, now time.Time) Message {
	return Message{
		UserID: r.ReviewerID, ManuscriptID: ref(m), Type: TypeReminder,
		Subject: "Review overdue: " + m.Title,
		Body: fmt.Sprintf("Your review of %s was due %s. Please submit it or contact the editor.",
			title(m), humanize.RelTime(*r.DueDate, now, "ago", "from now")),
	}
}

func CopyEditOverdue(m *models.Manuscript, now time.Time) Message {
	a := m.CopyEditorAssignment
	return Message{
		UserID: a.CopyEditorID, ManuscriptID: ref(m), Type: TypeReminder,
		Subject: "Copy-edit overdue: " + m.Title,
		Body: fmt.Sprintf("Copy-editing of %s was due %s.",
			title(m), humanize.RelTime(*a.DueDate, now, "ago", "from now")),
	}
}
