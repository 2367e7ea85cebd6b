// Package testsupport provides an in-memory store.Store for handler and job
// tests.
package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

type issueArticle struct {
	manuscriptID uuid.UUID
	position     int
}

// MemStore keeps deep copies of every record so callers can never mutate
// stored state through a returned pointer.
type MemStore struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[uuid.UUID]models.User
	manuscripts   map[uuid.UUID]models.Manuscript
	timeline      map[uuid.UUID][]models.TimelineEvent
	reviews       map[uuid.UUID]models.Review
	payments      map[uuid.UUID]models.Payment
	paymentInfos  map[uuid.UUID]models.PaymentInfo
	volumes       map[uuid.UUID]models.Volume
	issues        map[uuid.UUID]models.Issue
	articles      map[uuid.UUID][]issueArticle
	notifications map[uuid.UUID]models.Notification

	// FailSaveTransition, when set, is returned by SaveTransition.
	FailSaveTransition error
}

func NewMemStore() *MemStore {
	var tick time.Duration
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &MemStore{
		now: func() time.Time {
			tick += time.Millisecond
			return base.Add(tick)
		},
		users:         map[uuid.UUID]models.User{},
		manuscripts:   map[uuid.UUID]models.Manuscript{},
		timeline:      map[uuid.UUID][]models.TimelineEvent{},
		reviews:       map[uuid.UUID]models.Review{},
		payments:      map[uuid.UUID]models.Payment{},
		paymentInfos:  map[uuid.UUID]models.PaymentInfo{},
		volumes:       map[uuid.UUID]models.Volume{},
		issues:        map[uuid.UUID]models.Issue{},
		articles:      map[uuid.UUID][]issueArticle{},
		notifications: map[uuid.UUID]models.Notification{},
	}
}

var _ store.Store = (*MemStore)(nil)

// clone deep-copies v through JSON; models are plain data so this is exact
// for every exported field.
func clone[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("testsupport: clone: %v", err))
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("testsupport: clone: %v", err))
	}
	return out
}

func cloneUser(u models.User) models.User {
	hash := u.PasswordHash
	out := clone(u)
	out.PasswordHash = hash
	return out
}

func (s *MemStore) Ping(context.Context) error { return nil }

// Users

func (s *MemStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return store.ErrAlreadyExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if len(u.Roles) == 0 {
		u.Roles = []workflow.Role{workflow.RoleAuthor}
	}
	if u.CurrentActiveRole == "" {
		u.CurrentActiveRole = u.Roles[0]
	}
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *MemStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneUser(u)
	return &out, nil
}

func (s *MemStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			out := cloneUser(u)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemStore) ListUsers(_ context.Context, role workflow.Role) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		if role == "" || u.HasRole(role) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) UpdateProfile(_ context.Context, id uuid.UUID, req models.UpdateProfileRequest) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Name, u.Affiliation, u.Bio = req.Name, req.Affiliation, req.Bio
	u.UpdatedAt = s.now()
	s.users[id] = u
	out := cloneUser(u)
	return &out, nil
}

func (s *MemStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *MemStore) SetActiveRole(_ context.Context, id uuid.UUID, role workflow.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.CurrentActiveRole = role
	s.users[id] = u
	return nil
}

func (s *MemStore) SetRoles(_ context.Context, id uuid.UUID, roles []workflow.Role, designation, designationRole string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	u.Roles = append([]workflow.Role(nil), roles...)
	if !u.HasRole(u.CurrentActiveRole) {
		u.CurrentActiveRole = roles[0]
	}
	u.Designation, u.DesignationRole = designation, designationRole
	u.UpdatedAt = s.now()
	s.users[id] = u
	out := cloneUser(u)
	return &out, nil
}

func (s *MemStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	// mirrors the RESTRICT foreign keys on manuscripts, reviews and payments
	for _, m := range s.manuscripts {
		if m.SubmittedBy == id {
			return store.ErrInUse
		}
	}
	for _, r := range s.reviews {
		if r.ReviewerID == id {
			return store.ErrInUse
		}
	}
	for _, p := range s.payments {
		if p.AuthorID == id {
			return store.ErrInUse
		}
	}
	for nid, n := range s.notifications {
		if n.UserID == id {
			delete(s.notifications, nid)
		}
	}
	delete(s.users, id)
	return nil
}

// Manuscripts

func (s *MemStore) CreateManuscript(_ context.Context, m *models.Manuscript, ev models.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Keywords == nil {
		m.Keywords = []string{}
	}
	m.CreatedAt = s.now()
	m.UpdatedAt = m.CreatedAt
	s.manuscripts[m.ID] = clone(*m)
	ev.ManuscriptID = m.ID
	s.appendEvent(&ev)
	return nil
}

func (s *MemStore) appendEvent(ev *models.TimelineEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Date.IsZero() {
		ev.Date = s.now()
	}
	s.timeline[ev.ManuscriptID] = append(s.timeline[ev.ManuscriptID], clone(*ev))
}

func (s *MemStore) GetManuscript(_ context.Context, id uuid.UUID) (*models.Manuscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manuscripts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clone(m)
	return &out, nil
}

func (s *MemStore) ListManuscripts(_ context.Context, f models.ManuscriptFilter) ([]models.Manuscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Manuscript{}
	for _, m := range s.manuscripts {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.SubmittedBy != nil && !m.IsSubmitter(*f.SubmittedBy) {
			continue
		}
		if f.CopyEditorID != nil && !m.IsCopyEditor(*f.CopyEditorID) {
			continue
		}
		if f.ReviewerID != nil && !s.hasReviewer(m.ID, *f.ReviewerID) {
			continue
		}
		out = append(out, clone(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemStore) hasReviewer(manuscriptID, reviewerID uuid.UUID) bool {
	for _, r := range s.reviews {
		if r.ManuscriptID == manuscriptID && r.ReviewerID == reviewerID && r.Status != models.ReviewDeclined {
			return true
		}
	}
	return false
}

// SaveTransition validates every part before applying any of them so a
// failure leaves the store untouched, like the database transaction.
func (s *MemStore) SaveTransition(_ context.Context, t store.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaveTransition != nil {
		return s.FailSaveTransition
	}
	m := t.Manuscript
	current, ok := s.manuscripts[m.ID]
	if !ok || !current.UpdatedAt.Equal(m.UpdatedAt) {
		return store.ErrConflict
	}
	if r := t.InsertReview; r != nil {
		for _, existing := range s.reviews {
			if existing.ManuscriptID == r.ManuscriptID && existing.ReviewerID == r.ReviewerID && existing.Round == r.Round {
				return store.ErrAlreadyExists
			}
		}
	}
	if r := t.UpdateReview; r != nil {
		if _, ok := s.reviews[r.ID]; !ok {
			return store.ErrNotFound
		}
	}

	now := s.now()
	m.UpdatedAt = now
	s.manuscripts[m.ID] = clone(*m)

	if r := t.InsertReview; r != nil {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.Status == "" {
			r.Status = models.ReviewPending
		}
		r.CreatedAt, r.UpdatedAt = now, now
		s.reviews[r.ID] = clone(*r)
	}
	if r := t.UpdateReview; r != nil {
		r.UpdatedAt = now
		s.reviews[r.ID] = clone(*r)
	}
	if p := t.Payment; p != nil {
		for id, existing := range s.payments {
			if existing.ManuscriptID == p.ManuscriptID {
				p.ID = id
				p.Reference = existing.Reference
				p.CreatedAt = existing.CreatedAt
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		s.payments[p.ID] = clone(*p)
	}
	if info := t.PaymentInfo; info != nil {
		if t.Payment != nil {
			info.PaymentID = t.Payment.ID
		}
		if info.ID == uuid.Nil {
			info.ID = uuid.New()
		}
		if info.CreatedAt.IsZero() {
			info.CreatedAt = now
		}
		s.paymentInfos[info.ID] = clone(*info)
	}
	if a := t.Article; a != nil {
		list := s.articles[a.IssueID]
		present := false
		for _, e := range list {
			if e.manuscriptID == a.ManuscriptID {
				present = true
			}
		}
		if !present {
			s.articles[a.IssueID] = append(list, issueArticle{manuscriptID: a.ManuscriptID, position: len(list) + 1})
		}
	}
	for i := range t.Events {
		t.Events[i].ManuscriptID = m.ID
		s.appendEvent(&t.Events[i])
	}
	return nil
}

func (s *MemStore) Timeline(_ context.Context, manuscriptID uuid.UUID) ([]models.TimelineEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.TimelineEvent{}
	for _, ev := range s.timeline[manuscriptID] {
		out = append(out, clone(ev))
	}
	return out, nil
}

func (s *MemStore) IncrementMetric(_ context.Context, id uuid.UUID, metric string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manuscripts[id]
	if !ok || m.Status != workflow.StatusPublished {
		return store.ErrNotFound
	}
	switch metric {
	case store.MetricViews:
		m.Metrics.Views++
	case store.MetricDownloads:
		m.Metrics.Downloads++
	case store.MetricCitations:
		m.Metrics.Citations++
	default:
		return fmt.Errorf("unknown metric %q", metric)
	}
	s.manuscripts[id] = m
	return nil
}

func (s *MemStore) OverdueCopyEdits(_ context.Context, now time.Time) ([]models.Manuscript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Manuscript{}
	for _, m := range s.manuscripts {
		a := m.CopyEditorAssignment
		if m.CopyEditingStage != workflow.StageCopyEditing || a == nil || a.DueDate == nil {
			continue
		}
		if a.Status != workflow.AssignmentAssigned && a.Status != workflow.AssignmentInProgress {
			continue
		}
		if a.DueDate.Before(now) {
			out = append(out, clone(m))
		}
	}
	return out, nil
}

// Reviews

func (s *MemStore) GetReview(_ context.Context, id uuid.UUID) (*models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clone(r)
	return &out, nil
}

func (s *MemStore) ListReviews(_ context.Context, f models.ReviewFilter) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, r := range s.reviews {
		if f.ManuscriptID != nil && r.ManuscriptID != *f.ManuscriptID {
			continue
		}
		if f.ReviewerID != nil && r.ReviewerID != *f.ReviewerID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) UpdateReviewStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now()
	s.reviews[id] = r
	return nil
}

func (s *MemStore) OverdueReviews(_ context.Context, now time.Time) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Review{}
	for _, r := range s.reviews {
		if !r.IsOpen() || r.DueDate == nil || !r.DueDate.Before(now) {
			continue
		}
		if m, ok := s.manuscripts[r.ManuscriptID]; ok && m.Status == workflow.StatusUnderReview {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

// Payments

func (s *MemStore) GetPayment(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clone(p)
	return &out, nil
}

func (s *MemStore) GetPaymentByManuscript(_ context.Context, manuscriptID uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ManuscriptID == manuscriptID {
			out := clone(p)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *MemStore) ListPayments(_ context.Context, status workflow.PaymentStatus) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range s.payments {
		if status == "" || p.Status == status {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemStore) LatestPaymentInfo(_ context.Context, paymentID uuid.UUID) (*models.PaymentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.PaymentInfo
	for _, info := range s.paymentInfos {
		if info.PaymentID != paymentID {
			continue
		}
		if latest == nil || info.CreatedAt.After(latest.CreatedAt) {
			c := clone(info)
			latest = &c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

// Volumes

func (s *MemStore) CreateVolume(_ context.Context, v *models.Volume) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.volumes {
		if existing.Number == v.Number {
			return store.ErrAlreadyExists
		}
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = s.now()
	s.volumes[v.ID] = clone(*v)
	return nil
}

func (s *MemStore) GetVolume(_ context.Context, id uuid.UUID) (*models.Volume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volumes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.volumeWithIssues(v)
	return &out, nil
}

func (s *MemStore) ListVolumes(context.Context) ([]models.Volume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Volume{}
	for _, v := range s.volumes {
		out = append(out, s.volumeWithIssues(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (s *MemStore) volumeWithIssues(v models.Volume) models.Volume {
	out := clone(v)
	out.Issues = nil
	for _, is := range s.issues {
		if is.VolumeID == v.ID {
			out.Issues = append(out.Issues, s.issueWithArticles(is))
		}
	}
	sort.Slice(out.Issues, func(i, j int) bool { return out.Issues[i].Number < out.Issues[j].Number })
	return out
}

func (s *MemStore) issueWithArticles(is models.Issue) models.Issue {
	out := clone(is)
	out.Articles = []uuid.UUID{}
	for _, a := range s.articles[is.ID] {
		out.Articles = append(out.Articles, a.manuscriptID)
	}
	return out
}

func (s *MemStore) CreateIssue(_ context.Context, is *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.volumes[is.VolumeID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range s.issues {
		if existing.VolumeID == is.VolumeID && existing.Number == is.Number {
			return store.ErrAlreadyExists
		}
	}
	if is.ID == uuid.Nil {
		is.ID = uuid.New()
	}
	is.CreatedAt = s.now()
	is.Articles = []uuid.UUID{}
	s.issues[is.ID] = clone(*is)
	return nil
}

func (s *MemStore) GetIssue(_ context.Context, id uuid.UUID) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	is, ok := s.issues[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.issueWithArticles(is)
	return &out, nil
}

// Notifications

func (s *MemStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = s.now()
	s.notifications[n.ID] = clone(*n)
	return nil
}

func (s *MemStore) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) MarkNotificationRead(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return store.ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *MemStore) MarkAllNotificationsRead(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, note := range s.notifications {
		if note.UserID == userID && !note.IsRead {
			note.IsRead = true
			s.notifications[id] = note
			n++
		}
	}
	return n, nil
}

// IssueArticleCount reports how many times manuscriptID appears in issueID.
func (s *MemStore) IssueArticleCount(issueID, manuscriptID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.articles[issueID] {
		if a.manuscriptID == manuscriptID {
			n++
		}
	}
	return n
}
