// Package notify delivers in-app and email notifications after a workflow
// transition has been committed. Delivery is best effort: failures are
// logged and counted, never returned to the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"journal-backend/internal/email"
	"journal-backend/internal/logging"
	"journal-backend/internal/metrics"
	"journal-backend/internal/models"
	"journal-backend/internal/store"
)

// Message is one notification for one user.
type Message struct {
	UserID       uuid.UUID
	ManuscriptID *uuid.UUID
	Type         string
	Subject      string
	Body         string
}

// Mailer sends an email.
type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

type Dispatcher struct {
	store   store.Store
	mailer  Mailer
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(st store.Store, mailer Mailer, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: st, mailer: mailer, logger: logger, metrics: m, timeout: 30 * time.Second}
}

// Dispatch delivers msgs in the background. The request context is detached so
// delivery survives the end of the request.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()
		for _, msg := range msgs {
			d.deliver(ctx, msg)
		}
	}()
}

// Wait blocks until every pending delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	log := d.logger.With(zap.String(logging.FieldUserID, msg.UserID.String()), zap.String("type", msg.Type))
	if msg.ManuscriptID != nil {
		log = log.With(zap.String(logging.FieldManuscriptID, msg.ManuscriptID.String()))
	}

	note := &models.Notification{
		UserID:       msg.UserID,
		ManuscriptID: msg.ManuscriptID,
		Type:         msg.Type,
		Message:      msg.Subject,
	}
	if err := d.store.CreateNotification(ctx, note); err != nil {
		log.Warn("in-app notification failed", zap.Error(err))
		d.countFailure("in_app")
	}

	if d.mailer == nil {
		return
	}
	user, err := d.store.GetUserByID(ctx, msg.UserID)
	if err != nil {
		log.Warn("notification recipient lookup failed", zap.Error(err))
		d.countFailure("email")
		return
	}
	body := "Dear " + user.Name + ",\n\n" + msg.Body + "\n"
	if err := d.mailer.Send(ctx, email.Message{To: user.Email, Subject: msg.Subject, Body: body}); err != nil {
		log.Warn("email notification failed", zap.Error(err))
		d.countFailure("email")
	}
}

func (d *Dispatcher) countFailure(channel string) {
	if d.metrics != nil {
		d.metrics.NotificationFailures.WithLabelValues(channel).Inc()
	}
}
