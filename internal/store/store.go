// Package store persists users, manuscripts and everything attached to them.
// Every workflow transition is written through SaveTransition so that the
// manuscript row, its timeline entries and any side records commit together.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"journal-backend/internal/models"
	"journal-backend/internal/workflow"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrConflict means the manuscript changed between load and save.
	ErrConflict = errors.New("store: concurrent modification")
	// ErrInUse means other records still reference the row.
	ErrInUse = errors.New("store: record is still referenced")
)

// Metric names accepted by IncrementMetric.
const (
	MetricViews     = "views"
	MetricDownloads = "downloads"
	MetricCitations = "citations"
)

// IssueArticle links a published manuscript to an issue.
type IssueArticle struct {
	IssueID      uuid.UUID
	ManuscriptID uuid.UUID
}

// Transition is the unit of work for one workflow step. Manuscript is
// required; every other field is optional.
type Transition struct {
	Manuscript   *models.Manuscript
	Events       []models.TimelineEvent
	InsertReview *models.Review
	UpdateReview *models.Review
	Payment      *models.Payment
	PaymentInfo  *models.PaymentInfo
	Article      *IssueArticle
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role workflow.Role) ([]models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req models.UpdateProfileRequest) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetActiveRole(ctx context.Context, id uuid.UUID, role workflow.Role) error
	// SetRoles overwrites the role list in one statement.
	SetRoles(ctx context.Context, id uuid.UUID, roles []workflow.Role, designation, designationRole string) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type Manuscripts interface {
	CreateManuscript(ctx context.Context, m *models.Manuscript, ev models.TimelineEvent) error
	GetManuscript(ctx context.Context, id uuid.UUID) (*models.Manuscript, error)
	ListManuscripts(ctx context.Context, f models.ManuscriptFilter) ([]models.Manuscript, error)
	SaveTransition(ctx context.Context, t Transition) error
	Timeline(ctx context.Context, manuscriptID uuid.UUID) ([]models.TimelineEvent, error)
	IncrementMetric(ctx context.Context, id uuid.UUID, metric string) error
	OverdueCopyEdits(ctx context.Context, now time.Time) ([]models.Manuscript, error)
}

type Reviews interface {
	GetReview(ctx context.Context, id uuid.UUID) (*models.Review, error)
	ListReviews(ctx context.Context, f models.ReviewFilter) ([]models.Review, error)
	UpdateReviewStatus(ctx context.Context, id uuid.UUID, status string) error
	OverdueReviews(ctx context.Context, now time.Time) ([]models.Review, error)
}

type Payments interface {
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetPaymentByManuscript(ctx context.Context, manuscriptID uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, status workflow.PaymentStatus) ([]models.Payment, error)
	LatestPaymentInfo(ctx context.Context, paymentID uuid.UUID) (*models.PaymentInfo, error)
}

type Volumes interface {
	CreateVolume(ctx context.Context, v *models.Volume) error
	GetVolume(ctx context.Context, id uuid.UUID) (*models.Volume, error)
	ListVolumes(ctx context.Context) ([]models.Volume, error)
	CreateIssue(ctx context.Context, is *models.Issue) error
	GetIssue(ctx context.Context, id uuid.UUID) (*models.Issue, error)
}

type Notifications interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Store is everything the HTTP layer and background jobs need.
type Store interface {
	Users
	Manuscripts
	Reviews
	Payments
	Volumes
	Notifications
	Ping(ctx context.Context) error
}

// Now is the clock used for row timestamps, truncated to the database precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
