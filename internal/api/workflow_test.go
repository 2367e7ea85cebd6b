package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"journal-backend/internal/api"
	"journal-backend/internal/auth"
	"journal-backend/internal/config"
	"journal-backend/internal/models"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
	"journal-backend/internal/testsupport"
	"journal-backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingNotifier) Dispatch(_ context.Context, msgs ...notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msgs...)
}

func (r *recordingNotifier) to(userID uuid.UUID) []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Message
	for _, m := range r.msgs {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	store    *testsupport.MemStore
	jwt      *auth.JWTManager
	notifier *recordingNotifier
}

func testConfig() *config.Config {
	return &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret", Issuer: "journal-test", Expiry: time.Hour},
		HTTP:    config.HTTPConfig{AuthRateLimit: 1000, AuthRateBurst: 1000, CORSOrigins: "*"},
		Storage: config.StorageConfig{MaxSizeMB: 5},
		Journal: config.JournalConfig{DefaultAPC: 1500, Currency: "USD", DOIPrefix: "10.5555"},
	}
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	st := testsupport.NewMemStore()
	notifier := &recordingNotifier{}
	server := api.NewServer(api.Deps{Store: st, Config: cfg, Notifier: notifier})

	router := gin.New()
	api.SetupRoutes(router, server)

	return &testEnv{t: t, router: router, store: st, jwt: auth.NewJWTManager(cfg), notifier: notifier}
}

// user creates a user holding roles and returns it with a bearer token.
func (e *testEnv) user(name string, roles ...workflow.Role) (*models.User, string) {
	e.t.Helper()
	u := &models.User{
		Email: fmt.Sprintf("%s_%s@journal.test", name, uuid.NewString()[:8]),
		Name:  name,
		Roles: roles,
	}
	if err := e.store.CreateUser(context.Background(), u); err != nil {
		e.t.Fatalf("create user %s: %v", name, err)
	}
	token, err := e.jwt.GenerateToken(u)
	if err != nil {
		e.t.Fatalf("token for %s: %v", name, err)
	}
	return u, token
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// must performs the request and fails the test unless the status matches.
func (e *testEnv) must(status int, method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	w := e.do(method, path, token, body)
	if w.Code != status {
		e.t.Fatalf("%s %s: got %d want %d: %s", method, path, w.Code, status, w.Body.String())
	}
	return w
}

type manuscriptResponse struct {
	Manuscript       models.Manuscript `json:"manuscript"`
	AvailableActions []string          `json:"available_actions"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func validSubmission() map[string]any {
	return map[string]any{
		"title":          "Sparse Graph Embeddings",
		"abstract":       "We study embeddings of sparse graphs.",
		"keywords":       []string{"graphs"},
		"authors":        []map[string]any{{"name": "Ada Author", "email": "ada@example.org", "corresponding": true}},
		"manuscript_url": "https://files.example.org/ms.pdf",
	}
}

// seed stores a manuscript owned by author and lets mutate set its state.
func (e *testEnv) seed(author uuid.UUID, mutate func(m *models.Manuscript)) *models.Manuscript {
	e.t.Helper()
	m := &models.Manuscript{
		SubmissionNumber: "MS-TEST-" + uuid.NewString()[:8],
		Title:            "Seeded",
		Abstract:         "Seeded abstract",
		Authors:          []models.Author{{Name: "Ada Author"}},
		SubmittedBy:      author,
		ManuscriptURL:    "https://files.example.org/seed.pdf",
	}
	m.SetState(workflow.Initial())
	if mutate != nil {
		mutate(m)
	}
	if err := e.store.CreateManuscript(context.Background(), m, models.TimelineEvent{Event: "submitted"}); err != nil {
		e.t.Fatalf("seed manuscript: %v", err)
	}
	return m
}

func inAuthorReview(copyEditor uuid.UUID) func(m *models.Manuscript) {
	return func(m *models.Manuscript) {
		m.CopyEditorAssignment = &models.CopyEditorAssignment{CopyEditorID: copyEditor}
		m.SetState(workflow.State{
			Status:      workflow.StatusAcceptedAwaitingCopyEdit,
			Stage:       workflow.StageAuthorReview,
			DraftStatus: workflow.DraftAwaitingAuthorReview,
			Assignment:  workflow.AssignmentGalleySubmitted,
		})
	}
}

func TestCreateManuscriptValidation(t *testing.T) {
	e := setupTestServer(t)
	_, token := e.user("author", workflow.RoleAuthor)

	tests := []struct {
		name   string
		mutate func(body map[string]any)
	}{
		{"missing title", func(b map[string]any) { delete(b, "title") }},
		{"missing abstract", func(b map[string]any) { b["abstract"] = "" }},
		{"no authors", func(b map[string]any) { b["authors"] = []map[string]any{} }},
		{"author without name", func(b map[string]any) { b["authors"] = []map[string]any{{"email": "x@example.org"}} }},
		{"missing manuscript url", func(b map[string]any) { delete(b, "manuscript_url") }},
		{"malformed manuscript url", func(b map[string]any) { b["manuscript_url"] = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validSubmission()
			tt.mutate(body)
			e.must(http.StatusBadRequest, http.MethodPost, "/api/manuscripts", token, body)
		})
	}

	w := e.must(http.StatusCreated, http.MethodPost, "/api/manuscripts", token, validSubmission())
	got := decode[manuscriptResponse](t, w)
	if got.Manuscript.Status != workflow.StatusSubmitted || got.Manuscript.SubmissionNumber == "" {
		t.Fatalf("unexpected manuscript %+v", got.Manuscript)
	}
	if !got.Manuscript.RequiresPayment || got.Manuscript.APCAmount != 1500 {
		t.Fatalf("default APC not applied: %+v", got.Manuscript)
	}
}

func TestCreateManuscriptRequiresAuth(t *testing.T) {
	e := setupTestServer(t)
	e.must(http.StatusUnauthorized, http.MethodPost, "/api/manuscripts", "", validSubmission())

	_, reviewerToken := e.user("reviewer", workflow.RoleReviewer)
	e.must(http.StatusForbidden, http.MethodPost, "/api/manuscripts", reviewerToken, validSubmission())
}

func TestPublicationWorkflow(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	reviewer, reviewerToken := e.user("reviewer", workflow.RoleReviewer)
	copyEditor, copyEditorToken := e.user("copyeditor", workflow.RoleCopyEditor)

	// 1. Submit
	w := e.must(http.StatusCreated, http.MethodPost, "/api/manuscripts", authorToken, validSubmission())
	ms := decode[manuscriptResponse](t, w).Manuscript
	base := "/api/manuscripts/" + ms.ID.String()

	// 2. Assign reviewer
	w = e.must(http.StatusCreated, http.MethodPost, base+"/reviewers", editorToken, map[string]any{"reviewer_id": reviewer.ID})
	assigned := decode[struct {
		Manuscript models.Manuscript `json:"manuscript"`
		Review     models.Review     `json:"review"`
	}](t, w)
	if assigned.Manuscript.Status != workflow.StatusUnderReview {
		t.Fatalf("status after assignment = %s", assigned.Manuscript.Status)
	}
	reviewPath := "/api/reviews/" + assigned.Review.ID.String()

	// 3. Reviewer accepts and reviews
	e.must(http.StatusOK, http.MethodPost, reviewPath+"/respond", reviewerToken, map[string]any{"accept": true})
	e.must(http.StatusOK, http.MethodPut, reviewPath, reviewerToken, map[string]any{
		"recommendation":        "minor-revision",
		"ratings":               map[string]int{"originality": 4, "methodology": 4, "clarity": 3, "significance": 4, "overall": 4},
		"comments_to_author":    "Clarify section 2.",
		"confidential_comments": "Solid work.",
	})

	// 4. Accept with an explicit APC
	w = e.must(http.StatusOK, http.MethodPost, base+"/decision", editorToken, map[string]any{"decision": "accept", "apc_amount": 900})
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusAccepted || got.APCAmount != 900 {
		t.Fatalf("after accept: %+v", got)
	}

	// 5. Copy-editing round trip
	e.must(http.StatusOK, http.MethodPost, base+"/copy-editor", editorToken, map[string]any{"copy_editor_id": copyEditor.ID})
	e.must(http.StatusOK, http.MethodPost, base+"/copy-edit/start", copyEditorToken, nil)
	e.must(http.StatusOK, http.MethodPost, base+"/copy-edit/submit", copyEditorToken, map[string]any{
		"completion_status": "galley-submitted",
		"galley_proof_url":  "https://files.example.org/galley-1.pdf",
	})
	w = e.must(http.StatusOK, http.MethodPost, base+"/author-approve-copy-edit", authorToken, map[string]any{"approved": true})
	got := decode[manuscriptResponse](t, w).Manuscript
	if got.CopyEditingStage != workflow.StageAwaitingCopyEditorConfirmation ||
		got.CopyEditorAssignment.Status != workflow.AssignmentApprovedByAuthor {
		t.Fatalf("after author approval: %+v", got)
	}
	w = e.must(http.StatusOK, http.MethodPost, base+"/copy-edit/confirm", copyEditorToken, nil)
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusPaymentRequired || got.PaymentStatus != workflow.PaymentPending {
		t.Fatalf("after confirmation: %+v", got)
	}

	// 6. Payment
	w = e.must(http.StatusOK, http.MethodGet, base+"/payment", authorToken, nil)
	payment := decode[models.PaymentWithInfo](t, w)
	if payment.Amount != 900 || payment.Reference == "" || payment.Status != workflow.PaymentPending {
		t.Fatalf("unexpected payment %+v", payment.Payment)
	}
	e.must(http.StatusOK, http.MethodPost, base+"/payment", authorToken, map[string]any{
		"bank_name": "First Bank", "account_holder": "Ada Author", "transaction_id": "TX-1", "amount_paid": 900,
	})
	w = e.must(http.StatusOK, http.MethodPost, "/api/payments/"+payment.ID.String()+"/accept", editorToken, nil)
	settled := decode[struct {
		Manuscript models.Manuscript       `json:"manuscript"`
		Payment    models.PaymentWithInfo `json:"payment"`
	}](t, w)
	if settled.Manuscript.Status != workflow.StatusInProduction || settled.Manuscript.PaymentStatus != workflow.PaymentCompleted {
		t.Fatalf("manuscript after payment: %+v", settled.Manuscript)
	}
	if settled.Payment.Status != workflow.PaymentCompleted || settled.Payment.Info == nil ||
		settled.Payment.Info.Status != models.PaymentInfoVerified {
		t.Fatalf("payment after acceptance: %+v", settled.Payment)
	}

	// 7. Publish
	e.must(http.StatusOK, http.MethodPost, base+"/ready-for-publication", editorToken, nil)
	w = e.must(http.StatusCreated, http.MethodPost, "/api/volumes", editorToken, map[string]any{"number": 1, "year": 2026})
	volume := decode[models.Volume](t, w)
	w = e.must(http.StatusCreated, http.MethodPost, "/api/volumes/"+volume.ID.String()+"/issues", editorToken, map[string]any{"number": 1})
	issue := decode[models.Issue](t, w)

	publish := map[string]any{"volume_id": volume.ID, "issue_id": issue.ID, "pages": "1-12"}
	w = e.must(http.StatusOK, http.MethodPost, base+"/publish", editorToken, publish)
	published := decode[manuscriptResponse](t, w).Manuscript
	if published.Status != workflow.StatusPublished || published.Publication == nil {
		t.Fatalf("after publish: %+v", published)
	}
	if published.Publication.DOI != "10.5555/"+strings.ToLower(published.SubmissionNumber) {
		t.Fatalf("unexpected DOI %q", published.Publication.DOI)
	}

	// Publishing again is refused and leaves the issue untouched.
	e.must(http.StatusBadRequest, http.MethodPost, base+"/publish", editorToken, publish)
	e.must(http.StatusBadRequest, http.MethodPost, base+"/direct-publish", editorToken, publish)
	if n := e.store.IssueArticleCount(issue.ID, ms.ID); n != 1 {
		t.Fatalf("issue article entries = %d, want 1", n)
	}

	w = e.must(http.StatusOK, http.MethodGet, "/api/volumes/"+volume.ID.String(), "", nil)
	if v := decode[models.Volume](t, w); len(v.Issues) != 1 || len(v.Issues[0].Articles) != 1 {
		t.Fatalf("volume listing: %+v", v)
	}

	// 8. Public surface
	w = e.must(http.StatusOK, http.MethodGet, "/api/published", "", nil)
	if list := decode[[]models.Manuscript](t, w); len(list) != 1 || list[0].CopyEditorAssignment != nil {
		t.Fatalf("published listing: %+v", list)
	}
	e.must(http.StatusNoContent, http.MethodPost, "/api/published/"+ms.ID.String()+"/views", "", nil)
	e.must(http.StatusNoContent, http.MethodPost, "/api/published/"+ms.ID.String()+"/downloads", "", nil)
	w = e.must(http.StatusOK, http.MethodGet, "/api/published/"+ms.ID.String(), "", nil)
	if m := decode[models.Manuscript](t, w); m.Metrics.Views != 1 || m.Metrics.Downloads != 1 {
		t.Fatalf("metrics: %+v", m.Metrics)
	}

	// 9. Audit trail
	w = e.must(http.StatusOK, http.MethodGet, base+"/timeline", authorToken, nil)
	events := decode[[]models.TimelineEvent](t, w)
	wantEvents := []string{
		"submitted", "assign-reviewer", "submit-review", "accept", "assign-copy-editor", "start-copy-edit",
		"submit-galley", "author-approve-copy-edit", "confirm-copy-edit", "submit-payment", "accept-payment",
		"mark-ready", "publish",
	}
	if len(events) != len(wantEvents) {
		t.Fatalf("timeline has %d events, want %d", len(events), len(wantEvents))
	}
	for i, ev := range events {
		if ev.Event != wantEvents[i] {
			t.Errorf("event %d = %q, want %q", i, ev.Event, wantEvents[i])
		}
	}

	if len(e.notifier.to(author.ID)) == 0 || len(e.notifier.to(copyEditor.ID)) == 0 || len(e.notifier.to(reviewer.ID)) == 0 {
		t.Fatal("expected notifications for author, reviewer and copy-editor")
	}
}

func TestAuthorApproveCopyEditRequiresSubmitter(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	_, otherAuthorToken := e.user("other", workflow.RoleAuthor)
	copyEditor, copyEditorToken := e.user("copyeditor", workflow.RoleCopyEditor)
	_, editorToken := e.user("editor", workflow.RoleEditor)

	m := e.seed(author.ID, inAuthorReview(copyEditor.ID))
	path := "/api/manuscripts/" + m.ID.String() + "/author-approve-copy-edit"
	body := map[string]any{"approved": true}

	e.must(http.StatusForbidden, http.MethodPost, path, otherAuthorToken, body)
	e.must(http.StatusForbidden, http.MethodPost, path, copyEditorToken, body)
	e.must(http.StatusForbidden, http.MethodPost, path, editorToken, body)
	e.must(http.StatusBadRequest, http.MethodPost, path, authorToken, map[string]any{})

	w := e.must(http.StatusOK, http.MethodPost, path, authorToken, map[string]any{"approved": false, "comments": "Fix figure 3"})
	got := decode[manuscriptResponse](t, w).Manuscript
	if got.CopyEditingStage != workflow.StageCopyEditing || got.DraftStatus != workflow.DraftRejectedByAuthor ||
		got.CopyEditorAssignment.Status != workflow.AssignmentInProgress {
		t.Fatalf("after author rejection: %+v", got)
	}
}

func TestAssignCopyEditorRequiresAcceptedManuscript(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	copyEditor, _ := e.user("copyeditor", workflow.RoleCopyEditor)
	_, editorToken := e.user("editor", workflow.RoleEditor)

	for _, status := range []workflow.Status{workflow.StatusSubmitted, workflow.StatusUnderReview, workflow.StatusRejected, workflow.StatusPublished} {
		m := e.seed(author.ID, func(m *models.Manuscript) { m.Status = status })
		e.must(http.StatusBadRequest, http.MethodPost, "/api/manuscripts/"+m.ID.String()+"/copy-editor", editorToken,
			map[string]any{"copy_editor_id": copyEditor.ID})
	}

	m := e.seed(author.ID, func(m *models.Manuscript) { m.Status = workflow.StatusAccepted })
	path := "/api/manuscripts/" + m.ID.String() + "/copy-editor"
	e.must(http.StatusBadRequest, http.MethodPost, path, editorToken, map[string]any{"copy_editor_id": author.ID})
	e.must(http.StatusOK, http.MethodPost, path, editorToken, map[string]any{"copy_editor_id": copyEditor.ID})
}

func TestConfirmCopyEditWithoutAPC(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	copyEditor, token := e.user("copyeditor", workflow.RoleCopyEditor)

	m := e.seed(author.ID, func(m *models.Manuscript) {
		m.CopyEditorAssignment = &models.CopyEditorAssignment{CopyEditorID: copyEditor.ID}
		m.SetState(workflow.State{
			Status:      workflow.StatusAcceptedAwaitingCopyEdit,
			Stage:       workflow.StageAwaitingCopyEditorConfirmation,
			DraftStatus: workflow.DraftApproved,
			Assignment:  workflow.AssignmentApprovedByAuthor,
		})
	})
	w := e.must(http.StatusOK, http.MethodPost, "/api/manuscripts/"+m.ID.String()+"/copy-edit/confirm", token, map[string]any{"comments": "done"})
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusInProduction {
		t.Fatalf("status = %s, want in-production", got.Status)
	}
	if _, err := e.store.GetPaymentByManuscript(context.Background(), m.ID); err != store.ErrNotFound {
		t.Fatalf("no payment expected, got %v", err)
	}
}

func TestPaymentRejectionAndWaiver(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	copyEditor, copyEditorToken := e.user("copyeditor", workflow.RoleCopyEditor)

	m := e.seed(author.ID, func(m *models.Manuscript) {
		m.APCAmount = 500
		m.RequiresPayment = true
		m.CopyEditorAssignment = &models.CopyEditorAssignment{CopyEditorID: copyEditor.ID}
		m.SetState(workflow.State{
			Status:          workflow.StatusAcceptedAwaitingCopyEdit,
			Stage:           workflow.StageAwaitingCopyEditorConfirmation,
			DraftStatus:     workflow.DraftApproved,
			Assignment:      workflow.AssignmentApprovedByAuthor,
			RequiresPayment: true,
		})
	})
	base := "/api/manuscripts/" + m.ID.String()
	e.must(http.StatusOK, http.MethodPost, base+"/copy-edit/confirm", copyEditorToken, nil)

	submit := map[string]any{"bank_name": "Bank", "account_holder": "Ada", "transaction_id": "TX-9", "amount_paid": 500}
	e.must(http.StatusOK, http.MethodPost, base+"/payment", authorToken, submit)
	payment := decode[models.PaymentWithInfo](t, e.must(http.StatusOK, http.MethodGet, base+"/payment", authorToken, nil))

	e.must(http.StatusBadRequest, http.MethodPost, "/api/payments/"+payment.ID.String()+"/reject", editorToken, map[string]any{})
	w := e.must(http.StatusOK, http.MethodPost, "/api/payments/"+payment.ID.String()+"/reject", editorToken, map[string]any{"reason": "amount missing"})
	rejected := decode[struct {
		Manuscript models.Manuscript      `json:"manuscript"`
		Payment    models.PaymentWithInfo `json:"payment"`
	}](t, w)
	if rejected.Manuscript.Status != workflow.StatusPaymentRequired || rejected.Payment.Status != workflow.PaymentRejected ||
		rejected.Payment.RejectionReason != "amount missing" || rejected.Payment.Info.Status != models.PaymentInfoRejected {
		t.Fatalf("after rejection: %+v", rejected)
	}

	// Accepting is refused until the author resubmits.
	e.must(http.StatusBadRequest, http.MethodPost, "/api/payments/"+payment.ID.String()+"/accept", editorToken, nil)
	e.must(http.StatusForbidden, http.MethodPost, "/api/payments/"+payment.ID.String()+"/accept", authorToken, nil)

	w = e.must(http.StatusOK, http.MethodPost, base+"/payment/waive", editorToken, map[string]any{"reason": "hardship"})
	got := decode[manuscriptResponse](t, w).Manuscript
	if got.Status != workflow.StatusInProduction || got.PaymentStatus != workflow.PaymentWaived || got.RequiresPayment {
		t.Fatalf("after waiver: %+v", got)
	}
	p, err := e.store.GetPayment(context.Background(), payment.ID)
	if err != nil || p.Status != workflow.PaymentWaived {
		t.Fatalf("payment after waiver: %+v %v", p, err)
	}
}

func TestAcceptPaymentRollsBackOnFailure(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)

	m := e.seed(author.ID, func(m *models.Manuscript) {
		m.SetState(workflow.State{Status: workflow.StatusPaymentSubmitted, PaymentStatus: workflow.PaymentSubmitted, RequiresPayment: true})
	})
	payment := &models.Payment{ManuscriptID: m.ID, AuthorID: author.ID, Amount: 100, Currency: "USD", Reference: "APC-X", Status: workflow.PaymentSubmitted}
	if err := e.store.SaveTransition(context.Background(), store.Transition{Manuscript: m, Payment: payment}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	e.store.FailSaveTransition = fmt.Errorf("disk full")
	e.must(http.StatusInternalServerError, http.MethodPost, "/api/payments/"+payment.ID.String()+"/accept", editorToken, nil)

	e.store.FailSaveTransition = nil
	stored, _ := e.store.GetManuscript(context.Background(), m.ID)
	storedPayment, _ := e.store.GetPayment(context.Background(), payment.ID)
	if stored.Status != workflow.StatusPaymentSubmitted || storedPayment.Status != workflow.PaymentSubmitted {
		t.Fatalf("partial write: manuscript %s payment %s", stored.Status, storedPayment.Status)
	}
}

func TestConcurrentModificationReturnsConflict(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	reviewer, _ := e.user("reviewer", workflow.RoleReviewer)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	m := e.seed(author.ID, nil)

	e.store.FailSaveTransition = store.ErrConflict
	e.must(http.StatusConflict, http.MethodPost, "/api/manuscripts/"+m.ID.String()+"/reviewers", editorToken,
		map[string]any{"reviewer_id": reviewer.ID})
}

func TestConcurrentRoleUpdates(t *testing.T) {
	e := setupTestServer(t)
	_, token := e.user("admin", workflow.RoleAdmin)
	target, _ := e.user("target", workflow.RoleAuthor)

	inputs := [][]string{
		{"author", "reviewer"},
		{"editor"},
		{"copy-editor", "author"},
		{"reviewer", "editor", "copy-editor"},
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		roles := inputs[i%len(inputs)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := e.do(http.MethodPatch, "/api/admin/users/"+target.ID.String()+"/roles", token, map[string]any{"roles": roles})
			if w.Code != http.StatusOK {
				t.Errorf("update roles: %d %s", w.Code, w.Body.String())
			}
		}()
	}
	wg.Wait()

	got, err := e.store.GetUserByID(context.Background(), target.ID)
	if err != nil {
		t.Fatal(err)
	}
	matched := false
	for _, in := range inputs {
		want, _ := models.NormalizeRoles(in)
		if equalRoles(got.Roles, want) {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("roles %v do not equal any input", got.Roles)
	}
}

func equalRoles(a, b []workflow.Role) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAdminGrantRequiresFounder(t *testing.T) {
	e := setupTestServer(t)
	_, adminToken := e.user("admin", workflow.RoleAdmin)
	target, _ := e.user("target", workflow.RoleEditor)
	path := "/api/admin/users/" + target.ID.String() + "/roles"

	e.must(http.StatusForbidden, http.MethodPatch, path, adminToken, map[string]any{"roles": []string{"editor", "admin"}})
	e.must(http.StatusBadRequest, http.MethodPatch, path, adminToken, map[string]any{"roles": []string{"editor", "wizard"}})
	w := e.must(http.StatusOK, http.MethodPatch, path, adminToken, map[string]any{"roles": []string{"Editor", "reviewer", "editor"}})
	if got := decode[models.User](t, w); !equalRoles(got.Roles, []workflow.Role{workflow.RoleEditor, workflow.RoleReviewer}) {
		t.Fatalf("roles = %v", got.Roles)
	}
}

func TestFounderRegistrationAndSwitchRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.Journal.FounderEmail = "chief@journal.test"
	st := testsupport.NewMemStore()
	router := gin.New()
	api.SetupRoutes(router, api.NewServer(api.Deps{Store: st, Config: cfg}))
	e := &testEnv{t: t, router: router, store: st, jwt: auth.NewJWTManager(cfg)}

	w := e.must(http.StatusCreated, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Chief", "email": "Chief@Journal.test", "password": "secret123",
	})
	reg := decode[models.LoginResponse](t, w)
	if !reg.User.IsFounder || !reg.User.IsAdmin() {
		t.Fatalf("founder not bootstrapped: %+v", reg.User)
	}
	e.must(http.StatusConflict, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Chief", "email": "chief@journal.test", "password": "secret123",
	})
	e.must(http.StatusUnauthorized, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "chief@journal.test", "password": "wrong"})
	w = e.must(http.StatusOK, http.MethodPost, "/api/auth/login", "", map[string]any{"email": "chief@journal.test", "password": "secret123"})
	token := decode[models.LoginResponse](t, w).Token

	e.must(http.StatusForbidden, http.MethodPost, "/api/auth/switch-role", token, map[string]any{"role": "reviewer"})
	e.must(http.StatusBadRequest, http.MethodPost, "/api/auth/switch-role", token, map[string]any{"role": "wizard"})
	w = e.must(http.StatusOK, http.MethodPost, "/api/auth/switch-role", token, map[string]any{"role": "editor"})
	switched := decode[models.LoginResponse](t, w)
	claims, err := e.jwt.ValidateToken(switched.Token)
	if err != nil || claims.ActiveRole != "editor" {
		t.Fatalf("claims after switch: %+v %v", claims, err)
	}
}

func TestReviewVisibility(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	reviewer, reviewerToken := e.user("reviewer", workflow.RoleReviewer)
	_, strangerToken := e.user("stranger", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)

	m := e.seed(author.ID, nil)
	base := "/api/manuscripts/" + m.ID.String()
	w := e.must(http.StatusCreated, http.MethodPost, base+"/reviewers", editorToken, map[string]any{"reviewer_id": reviewer.ID})
	review := decode[struct {
		Review models.Review `json:"review"`
	}](t, w).Review

	// A reviewer cannot act on someone else's review.
	_, otherReviewerToken := e.user("other-reviewer", workflow.RoleReviewer)
	e.must(http.StatusForbidden, http.MethodPost, "/api/reviews/"+review.ID.String()+"/respond", otherReviewerToken, map[string]any{"accept": true})

	e.must(http.StatusOK, http.MethodPut, "/api/reviews/"+review.ID.String(), reviewerToken, map[string]any{
		"recommendation":        "accept",
		"ratings":               map[string]int{"originality": 5, "methodology": 5, "clarity": 5, "significance": 5, "overall": 5},
		"comments_to_author":    "Well done.",
		"confidential_comments": "Recommend fast track.",
	})
	e.must(http.StatusBadRequest, http.MethodPut, "/api/reviews/"+review.ID.String(), reviewerToken, map[string]any{
		"recommendation":     "accept",
		"ratings":            map[string]int{"originality": 5, "methodology": 5, "clarity": 5, "significance": 5, "overall": 5},
		"comments_to_author": "Again.",
	})

	w = e.must(http.StatusOK, http.MethodGet, base+"/reviews", authorToken, nil)
	authorView := decode[[]models.Review](t, w)
	if len(authorView) != 1 || authorView[0].ConfidentialComments != "" || authorView[0].ReviewerID != uuid.Nil {
		t.Fatalf("author view leaks reviewer data: %+v", authorView)
	}
	w = e.must(http.StatusOK, http.MethodGet, base+"/reviews", editorToken, nil)
	if editorView := decode[[]models.Review](t, w); editorView[0].ConfidentialComments == "" {
		t.Fatal("editor should see confidential comments")
	}

	e.must(http.StatusForbidden, http.MethodGet, base, strangerToken, nil)
	e.must(http.StatusOK, http.MethodGet, base, reviewerToken, nil)
}

func TestNotificationsInbox(t *testing.T) {
	e := setupTestServer(t)
	user, token := e.user("author", workflow.RoleAuthor)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := e.store.CreateNotification(ctx, &models.Notification{UserID: user.ID, Type: notify.TypeDecision, Message: "m"}); err != nil {
			t.Fatal(err)
		}
	}

	notes := decode[[]models.Notification](t, e.must(http.StatusOK, http.MethodGet, "/api/notifications?unread=true", token, nil))
	if len(notes) != 3 {
		t.Fatalf("unread = %d", len(notes))
	}
	e.must(http.StatusOK, http.MethodPut, "/api/notifications/"+notes[0].ID.String()+"/read", token, nil)

	_, otherToken := e.user("other", workflow.RoleAuthor)
	e.must(http.StatusNotFound, http.MethodPut, "/api/notifications/"+notes[1].ID.String()+"/read", otherToken, nil)

	w := e.must(http.StatusOK, http.MethodPut, "/api/notifications/read-all", token, nil)
	if got := decode[map[string]int64](t, w); got["updated"] != 2 {
		t.Fatalf("read-all updated %v", got)
	}
}

func TestListManuscriptsScopedByRole(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	other, _ := e.user("other", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	e.seed(author.ID, nil)
	e.seed(other.ID, nil)

	if got := decode[[]models.Manuscript](t, e.must(http.StatusOK, http.MethodGet, "/api/manuscripts", authorToken, nil)); len(got) != 1 {
		t.Fatalf("author sees %d manuscripts", len(got))
	}
	if got := decode[[]models.Manuscript](t, e.must(http.StatusOK, http.MethodGet, "/api/manuscripts", editorToken, nil)); len(got) != 2 {
		t.Fatalf("editor sees %d manuscripts", len(got))
	}
	e.must(http.StatusBadRequest, http.MethodGet, "/api/manuscripts?status=lost", editorToken, nil)
}

func TestRevokedRolesApplyToIssuedTokens(t *testing.T) {
	e := setupTestServer(t)
	_, adminToken := e.user("admin", workflow.RoleAdmin)
	editor, editorToken := e.user("editor", workflow.RoleEditor)
	author, _ := e.user("author", workflow.RoleAuthor)
	reviewer, _ := e.user("reviewer", workflow.RoleReviewer)

	submitted := e.seed(author.ID, nil)
	underReview := e.seed(author.ID, func(m *models.Manuscript) { m.Status = workflow.StatusUnderReview })

	e.must(http.StatusOK, http.MethodPatch, "/api/admin/users/"+editor.ID.String()+"/roles", adminToken,
		map[string]any{"roles": []string{"author"}})

	e.must(http.StatusForbidden, http.MethodPost, "/api/manuscripts/"+submitted.ID.String()+"/reviewers", editorToken,
		map[string]any{"reviewer_id": reviewer.ID})
	e.must(http.StatusForbidden, http.MethodPost, "/api/manuscripts/"+underReview.ID.String()+"/decision", editorToken,
		map[string]any{"decision": "accept"})

	for _, m := range []*models.Manuscript{submitted, underReview} {
		stored, err := e.store.GetManuscript(context.Background(), m.ID)
		if err != nil || stored.Status != m.Status {
			t.Fatalf("manuscript changed by revoked editor: %+v %v", stored, err)
		}
	}

	e.must(http.StatusOK, http.MethodDelete, "/api/admin/users/"+editor.ID.String(), adminToken, nil)
	e.must(http.StatusUnauthorized, http.MethodGet, "/api/manuscripts", editorToken, nil)
}

type assignResponse struct {
	Manuscript models.Manuscript `json:"manuscript"`
	Review     models.Review     `json:"review"`
}

func submitReview(e *testEnv, reviewID uuid.UUID, token string, want int) {
	e.t.Helper()
	e.must(want, http.MethodPut, "/api/reviews/"+reviewID.String(), token, map[string]any{
		"recommendation":     "minor-revision",
		"ratings":            map[string]int{"originality": 4, "methodology": 4, "clarity": 4, "significance": 4, "overall": 4},
		"comments_to_author": "See attached notes.",
	})
}

func TestReviewerReassignedAfterRevision(t *testing.T) {
	e := setupTestServer(t)
	author, authorToken := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	reviewer, reviewerToken := e.user("reviewer", workflow.RoleReviewer)
	idle, idleToken := e.user("idle-reviewer", workflow.RoleReviewer)

	m := e.seed(author.ID, nil)
	base := "/api/manuscripts/" + m.ID.String()
	assign := map[string]any{"reviewer_id": reviewer.ID}

	first := decode[assignResponse](t, e.must(http.StatusCreated, http.MethodPost, base+"/reviewers", editorToken, assign)).Review
	if first.Round != 0 {
		t.Fatalf("first round = %d", first.Round)
	}
	stale := decode[assignResponse](t, e.must(http.StatusCreated, http.MethodPost, base+"/reviewers", editorToken,
		map[string]any{"reviewer_id": idle.ID})).Review
	submitReview(e, first.ID, reviewerToken, http.StatusOK)

	// Same reviewer twice in one round is a duplicate.
	e.must(http.StatusConflict, http.MethodPost, base+"/reviewers", editorToken, assign)

	e.must(http.StatusOK, http.MethodPost, base+"/decision", editorToken, map[string]any{"decision": "revision", "comments": "Address the reviews."})
	w := e.must(http.StatusOK, http.MethodPost, base+"/revision", authorToken, map[string]any{
		"manuscript_url":        "https://files.example.org/ms-v2.pdf",
		"response_to_reviewers": "Done.",
	})
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusSubmitted || got.RevisionNumber != 1 {
		t.Fatalf("after revision: %+v", got)
	}

	second := decode[assignResponse](t, e.must(http.StatusCreated, http.MethodPost, base+"/reviewers", editorToken, assign))
	if second.Review.Round != 1 || second.Review.ID == first.ID || second.Manuscript.Status != workflow.StatusUnderReview {
		t.Fatalf("second assignment: %+v", second)
	}

	// An invitation left open from the first round cannot be used now.
	submitReview(e, stale.ID, idleToken, http.StatusBadRequest)

	submitReview(e, second.Review.ID, reviewerToken, http.StatusOK)
	w = e.must(http.StatusOK, http.MethodPost, base+"/decision", editorToken, map[string]any{"decision": "accept"})
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusAccepted {
		t.Fatalf("status after accept = %s", got.Status)
	}

	reviews := decode[[]models.Review](t, e.must(http.StatusOK, http.MethodGet, base+"/reviews", editorToken, nil))
	if len(reviews) != 3 {
		t.Fatalf("reviews = %d, want 3", len(reviews))
	}
}

func (e *testEnv) volumeWithIssue(token string, number int) (models.Volume, models.Issue) {
	e.t.Helper()
	v := decode[models.Volume](e.t, e.must(http.StatusCreated, http.MethodPost, "/api/volumes", token, map[string]any{"number": number, "year": 2026}))
	is := decode[models.Issue](e.t, e.must(http.StatusCreated, http.MethodPost, "/api/volumes/"+v.ID.String()+"/issues", token, map[string]any{"number": 1}))
	return v, is
}

func TestDirectPublish(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)

	volume, issue := e.volumeWithIssue(editorToken, 1)
	otherVolume, _ := e.volumeWithIssue(editorToken, 2)

	inProduction := e.seed(author.ID, func(m *models.Manuscript) {
		m.SetState(workflow.State{
			Status:        workflow.StatusInProduction,
			Stage:         workflow.StageReadyForProduction,
			PaymentStatus: workflow.PaymentCompleted,
		})
	})
	path := "/api/manuscripts/" + inProduction.ID.String() + "/direct-publish"

	w := e.must(http.StatusBadRequest, http.MethodPost, path, editorToken,
		map[string]any{"volume_id": otherVolume.ID, "issue_id": issue.ID, "pages": "1-8"})
	if !strings.Contains(w.Body.String(), "does not belong") {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
	if n := e.store.IssueArticleCount(issue.ID, inProduction.ID); n != 0 {
		t.Fatalf("mismatched publish linked the article: %d", n)
	}

	w = e.must(http.StatusOK, http.MethodPost, path, editorToken,
		map[string]any{"volume_id": volume.ID, "issue_id": issue.ID, "pages": "1-8"})
	got := decode[manuscriptResponse](t, w).Manuscript
	if got.Status != workflow.StatusPublished || got.Publication == nil || got.Publication.IssueID != issue.ID {
		t.Fatalf("after direct publish: %+v", got)
	}
	if n := e.store.IssueArticleCount(issue.ID, inProduction.ID); n != 1 {
		t.Fatalf("issue article entries = %d, want 1", n)
	}

	ready := e.seed(author.ID, func(m *models.Manuscript) {
		m.SetState(workflow.State{Status: workflow.StatusReadyForPublication, Stage: workflow.StageReadyForPublication})
	})
	e.must(http.StatusOK, http.MethodPost, "/api/manuscripts/"+ready.ID.String()+"/direct-publish", editorToken,
		map[string]any{"volume_id": volume.ID, "issue_id": issue.ID})

	// Still in copy-editing: refused.
	early := e.seed(author.ID, inAuthorReview(uuid.New()))
	e.must(http.StatusBadRequest, http.MethodPost, "/api/manuscripts/"+early.ID.String()+"/direct-publish", editorToken,
		map[string]any{"volume_id": volume.ID, "issue_id": issue.ID})
}

func TestDeleteUser(t *testing.T) {
	e := setupTestServer(t)
	admin, adminToken := e.user("admin", workflow.RoleAdmin)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	ctx := context.Background()

	founder := &models.User{Email: "founder@journal.test", Name: "Founder", Roles: []workflow.Role{workflow.RoleAdmin}, IsFounder: true}
	if err := e.store.CreateUser(ctx, founder); err != nil {
		t.Fatal(err)
	}
	author, _ := e.user("author", workflow.RoleAuthor)
	m := e.seed(author.ID, nil)
	reviewer, _ := e.user("reviewer", workflow.RoleReviewer)
	e.must(http.StatusCreated, http.MethodPost, "/api/manuscripts/"+m.ID.String()+"/reviewers", editorToken,
		map[string]any{"reviewer_id": reviewer.ID})
	idle, _ := e.user("idle", workflow.RoleAuthor)
	if err := e.store.CreateNotification(ctx, &models.Notification{UserID: idle.ID, Type: notify.TypeDecision, Message: "m"}); err != nil {
		t.Fatal(err)
	}

	path := func(id uuid.UUID) string { return "/api/admin/users/" + id.String() }

	e.must(http.StatusForbidden, http.MethodDelete, path(idle.ID), editorToken, nil)
	e.must(http.StatusBadRequest, http.MethodDelete, path(admin.ID), adminToken, nil)
	e.must(http.StatusForbidden, http.MethodDelete, path(founder.ID), adminToken, nil)
	e.must(http.StatusNotFound, http.MethodDelete, path(uuid.New()), adminToken, nil)

	for _, u := range []*models.User{author, reviewer} {
		w := e.must(http.StatusConflict, http.MethodDelete, path(u.ID), adminToken, nil)
		if !strings.Contains(w.Body.String(), "cannot be deleted") {
			t.Fatalf("unexpected conflict body: %s", w.Body.String())
		}
		if _, err := e.store.GetUserByID(ctx, u.ID); err != nil {
			t.Fatalf("%s should still exist: %v", u.Name, err)
		}
	}

	e.must(http.StatusOK, http.MethodDelete, path(idle.ID), adminToken, nil)
	if _, err := e.store.GetUserByID(ctx, idle.ID); err != store.ErrNotFound {
		t.Fatalf("deleted user still present: %v", err)
	}
	if notes, _ := e.store.ListNotifications(ctx, idle.ID, false); len(notes) != 0 {
		t.Fatalf("notifications of deleted user kept: %d", len(notes))
	}
}

func TestWaiveClosesPendingPaymentProof(t *testing.T) {
	e := setupTestServer(t)
	author, _ := e.user("author", workflow.RoleAuthor)
	_, editorToken := e.user("editor", workflow.RoleEditor)
	ctx := context.Background()

	m := e.seed(author.ID, func(m *models.Manuscript) {
		m.APCAmount = 300
		m.SetState(workflow.State{
			Status:          workflow.StatusPaymentSubmitted,
			Stage:           workflow.StageReadyForProduction,
			PaymentStatus:   workflow.PaymentSubmitted,
			RequiresPayment: true,
		})
	})
	payment := &models.Payment{ManuscriptID: m.ID, AuthorID: author.ID, Amount: 300, Currency: "USD", Reference: "APC-W", Status: workflow.PaymentSubmitted}
	info := &models.PaymentInfo{
		ManuscriptID: m.ID, BankName: "Bank", AccountHolder: "Ada", TransactionID: "TX-W",
		AmountPaid: 300, PaidAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Status: models.PaymentInfoPendingVerification,
	}
	if err := e.store.SaveTransition(ctx, store.Transition{Manuscript: m, Payment: payment, PaymentInfo: info}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	w := e.must(http.StatusOK, http.MethodPost, "/api/manuscripts/"+m.ID.String()+"/payment/waive", editorToken, map[string]any{"reason": "hardship"})
	if got := decode[manuscriptResponse](t, w).Manuscript; got.Status != workflow.StatusInProduction || got.PaymentStatus != workflow.PaymentWaived {
		t.Fatalf("after waiver: %+v", got)
	}

	p, err := e.store.GetPayment(ctx, payment.ID)
	if err != nil || p.Status != workflow.PaymentWaived {
		t.Fatalf("payment after waiver: %+v %v", p, err)
	}
	latest, err := e.store.LatestPaymentInfo(ctx, payment.ID)
	if err != nil || latest.ID != info.ID || latest.Status != models.PaymentInfoRejected {
		t.Fatalf("payment proof after waiver: %+v %v", latest, err)
	}
}
