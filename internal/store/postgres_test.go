package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"journal-backend/internal/database"
	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	p := NewPostgres(database.New(db, nil), nil)
	p.now = func() time.Time { return fixedNow }
	return p, mock
}

func paymentSubmittedManuscript() *models.Manuscript {
	return &models.Manuscript{
		ID:               uuid.New(),
		SubmissionNumber: "MS-2026-TEST",
		Title:            "Graph Sparsifiers",
		Abstract:         "abstract",
		Authors:          []models.Author{{Name: "Ada"}},
		SubmittedBy:      uuid.New(),
		Status:           workflow.StatusPaymentSubmitted,
		CopyEditingStage: workflow.StageReadyForProduction,
		RequiresPayment:  true,
		PaymentStatus:    workflow.PaymentSubmitted,
		APCAmount:        450,
		UpdatedAt:        fixedNow.Add(-time.Hour),
	}
}

func acceptPaymentTransition(m *models.Manuscript) Transition {
	editor := uuid.New()
	at := fixedNow
	next, _ := workflow.Apply(workflow.ActionAcceptPayment, workflow.RoleEditor, m.State())
	m.SetState(next)
	return Transition{
		Manuscript: m,
		Payment: &models.Payment{
			ID:           uuid.New(),
			ManuscriptID: m.ID,
			AuthorID:     m.SubmittedBy,
			Amount:       450,
			Currency:     "USD",
			Reference:    "APC-REF",
			Status:       workflow.PaymentCompleted,
			VerifiedBy:   &editor,
			VerifiedAt:   &at,
		},
		PaymentInfo: &models.PaymentInfo{
			ID:           uuid.New(),
			ManuscriptID: m.ID,
			BankName:     "Bank",
			Status:       models.PaymentInfoVerified,
			PaidAt:       fixedNow,
		},
		Events: []models.TimelineEvent{{Event: string(workflow.ActionAcceptPayment), PerformedBy: editor}},
	}
}

func TestSaveTransitionAcceptPaymentCommitsAllWrites(t *testing.T) {
	p, mock := newMockStore(t)
	m := paymentSubmittedManuscript()
	tr := acceptPaymentTransition(m)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "reference"}).AddRow(tr.Payment.ID.String(), "APC-REF"))
	mock.ExpectExec("INSERT INTO payment_infos").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO manuscript_timeline").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := p.SaveTransition(context.Background(), tr); err != nil {
		t.Fatalf("SaveTransition: %v", err)
	}
	if m.Status != workflow.StatusInProduction || m.PaymentStatus != workflow.PaymentCompleted {
		t.Fatalf("unexpected manuscript state: %+v", m.State())
	}
	if tr.PaymentInfo.PaymentID != tr.Payment.ID {
		t.Fatal("payment info should be linked to the payment")
	}
	if !m.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("updated_at not advanced: %v", m.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveTransitionRollsBackWhenAnyWriteFails(t *testing.T) {
	cases := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock, payID uuid.UUID)
	}{
		{
			name: "payment upsert fails",
			expect: func(mock sqlmock.Sqlmock, _ uuid.UUID) {
				mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery("INSERT INTO payments").WillReturnError(errors.New("disk full"))
			},
		},
		{
			name: "payment info insert fails",
			expect: func(mock sqlmock.Sqlmock, payID uuid.UUID) {
				mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery("INSERT INTO payments").
					WillReturnRows(sqlmock.NewRows([]string{"id", "reference"}).AddRow(payID.String(), "APC-REF"))
				mock.ExpectExec("INSERT INTO payment_infos").WillReturnError(errors.New("constraint"))
			},
		},
		{
			name: "timeline insert fails",
			expect: func(mock sqlmock.Sqlmock, payID uuid.UUID) {
				mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery("INSERT INTO payments").
					WillReturnRows(sqlmock.NewRows([]string{"id", "reference"}).AddRow(payID.String(), "APC-REF"))
				mock.ExpectExec("INSERT INTO payment_infos").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO manuscript_timeline").WillReturnError(errors.New("timeout"))
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, mock := newMockStore(t)
			m := paymentSubmittedManuscript()
			prev := m.UpdatedAt
			tr := acceptPaymentTransition(m)

			mock.ExpectBegin()
			tc.expect(mock, tr.Payment.ID)
			mock.ExpectRollback()

			if err := p.SaveTransition(context.Background(), tr); err == nil {
				t.Fatal("expected error")
			}
			if !m.UpdatedAt.Equal(prev) {
				t.Fatal("updated_at must not advance on failure")
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestSaveTransitionDetectsConcurrentUpdate(t *testing.T) {
	p, mock := newMockStore(t)
	m := paymentSubmittedManuscript()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := p.SaveTransition(context.Background(), Transition{Manuscript: m})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveTransitionPublishAddsIssueArticle(t *testing.T) {
	p, mock := newMockStore(t)
	m := paymentSubmittedManuscript()
	m.Status = workflow.StatusReadyForPublication
	issueID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO issue_articles .* ON CONFLICT \\(issue_id, manuscript_id\\) DO NOTHING").
		WithArgs(issueID, m.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO manuscript_timeline").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := p.SaveTransition(context.Background(), Transition{
		Manuscript: m,
		Article:    &IssueArticle{IssueID: issueID, ManuscriptID: m.ID},
		Events:     []models.TimelineEvent{{Event: "publish"}},
	})
	if err != nil {
		t.Fatalf("SaveTransition: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetManuscriptDecodesSubDocuments(t *testing.T) {
	p, mock := newMockStore(t)
	id := uuid.New()
	submitter := uuid.New()
	copyEditor := uuid.New()

	cols := []string{
		"id", "submission_number", "title", "abstract", "keywords", "authors", "submitted_by",
		"manuscript_url", "cover_letter", "revision_number", "status", "copy_editing_stage", "draft_status",
		"copy_editor_assignment", "author_copy_edit_review", "copy_edit_review", "requires_payment",
		"payment_status", "apc_amount", "views", "downloads", "citations", "volume_id", "issue_id", "pages", "doi",
		"published_at", "created_at", "updated_at",
	}
	assignment := `{"copy_editor_id":"` + copyEditor.String() + `","status":"galley-submitted","galley_proofs":[{"url":"https://files.test/g1.pdf","version":1}]}`
	mock.ExpectQuery("SELECT .* FROM manuscripts WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			id.String(), "MS-2026-X", "Title", "Abstract", []byte(`["graphs"]`), []byte(`[{"name":"Ada","corresponding":true}]`), submitter.String(),
			"https://files.test/ms.pdf", "", 1, "accepted-awaiting-copy-edit", "author-review", "awaiting-author-review",
			[]byte(assignment), nil, nil, true,
			"", 300.0, 0, 0, 0, nil, nil, "", "",
			nil, fixedNow, fixedNow,
		))

	m, err := p.GetManuscript(context.Background(), id)
	if err != nil {
		t.Fatalf("GetManuscript: %v", err)
	}
	if m.CopyEditorAssignment == nil || m.CopyEditorAssignment.CopyEditorID != copyEditor {
		t.Fatalf("assignment not decoded: %+v", m.CopyEditorAssignment)
	}
	if len(m.CopyEditorAssignment.GalleyProofs) != 1 {
		t.Fatalf("galley proofs not decoded")
	}
	if m.AuthorCopyEditReview != nil || m.Publication != nil {
		t.Fatal("null sub-documents should stay nil")
	}
	if got := m.State().Assignment; got != workflow.AssignmentGalleySubmitted {
		t.Fatalf("assignment status = %q", got)
	}
	if len(m.Keywords) != 1 || !m.Authors[0].Corresponding {
		t.Fatalf("arrays not decoded: %+v %+v", m.Keywords, m.Authors)
	}
}

func TestGetManuscriptNotFound(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectQuery("SELECT .* FROM manuscripts").WillReturnError(sql.ErrNoRows)

	if _, err := p.GetManuscript(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pgconn.PgError{Code: "23505"})

	err := p.CreateUser(context.Background(), &models.User{Email: "A@Example.org", Name: "A"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestSetRolesIsSingleStatement(t *testing.T) {
	p, mock := newMockStore(t)
	id := uuid.New()

	cols := []string{"id", "email", "password_hash", "name", "roles", "current_active_role", "is_founder",
		"designation", "designation_role", "affiliation", "bio", "created_at", "updated_at"}
	mock.ExpectQuery("UPDATE users SET\\s+roles = \\$2::jsonb").
		WithArgs(id, `["reviewer","editor"]`, workflow.RoleReviewer, "Associate Editor", "editor", fixedNow).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			id.String(), "r@example.org", "hash", "R", []byte(`["reviewer","editor"]`), "reviewer", false,
			"Associate Editor", "editor", "", "", fixedNow, fixedNow,
		))

	u, err := p.SetRoles(context.Background(), id,
		[]workflow.Role{workflow.RoleReviewer, workflow.RoleEditor}, "Associate Editor", "editor")
	if err != nil {
		t.Fatalf("SetRoles: %v", err)
	}
	if len(u.Roles) != 2 || u.Roles[1] != workflow.RoleEditor {
		t.Fatalf("unexpected roles: %v", u.Roles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIncrementMetricRejectsUnknownColumn(t *testing.T) {
	p, _ := newMockStore(t)
	if err := p.IncrementMetric(context.Background(), uuid.New(), "title"); err == nil {
		t.Fatal("expected error for unknown metric")
	}
}

func TestIncrementMetricUnpublished(t *testing.T) {
	p, mock := newMockStore(t)
	mock.ExpectExec("UPDATE manuscripts SET views = views \\+ 1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := p.IncrementMetric(context.Background(), uuid.New(), MetricViews); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListManuscriptsFilters(t *testing.T) {
	p, mock := newMockStore(t)
	author := uuid.New()

	mock.ExpectQuery("WHERE status = \\$1 AND \\(submitted_by = \\$2 OR authors @> .*\\$3::text.*ORDER BY created_at DESC LIMIT \\$4").
		WithArgs(workflow.StatusSubmitted, author, author.String(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := p.ListManuscripts(context.Background(), models.ManuscriptFilter{
		Status:      workflow.StatusSubmitted,
		SubmittedBy: &author,
		Limit:       10,
	})
	if err != nil {
		t.Fatalf("ListManuscripts: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}

func TestDeleteUserStillReferenced(t *testing.T) {
	p, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec("DELETE FROM users WHERE id = \\$1").WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "manuscripts_submitted_by_fkey"})

	if err := p.DeleteUser(context.Background(), id); !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}

	mock.ExpectExec("DELETE FROM users").WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	if err := p.DeleteUser(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveTransitionInsertsReviewForRound(t *testing.T) {
	p, mock := newMockStore(t)
	m := paymentSubmittedManuscript()
	m.Status = workflow.StatusUnderReview
	m.RevisionNumber = 2
	review := &models.Review{ManuscriptID: m.ID, ReviewerID: uuid.New(), AssignedBy: uuid.New(), Round: 2}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reviews \\(id, manuscript_id, reviewer_id, assigned_by, round,").
		WithArgs(sqlmock.AnyArg(), m.ID, review.ReviewerID, review.AssignedBy, 2, models.ReviewPending, nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := p.SaveTransition(context.Background(), Transition{Manuscript: m, InsertReview: review}); err != nil {
		t.Fatalf("SaveTransition: %v", err)
	}
	if review.ID == uuid.Nil {
		t.Fatal("review id not assigned")
	}

	// The same reviewer in the same round violates the unique key.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE manuscripts SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO reviews").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	dup := &models.Review{ManuscriptID: m.ID, ReviewerID: review.ReviewerID, AssignedBy: review.AssignedBy, Round: 2}
	if err := p.SaveTransition(context.Background(), Transition{Manuscript: m, InsertReview: dup}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
