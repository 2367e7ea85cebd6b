// Package jobs runs scheduled background work: reminders for overdue reviews
// and overdue copy-edit assignments.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"journal-backend/internal/config"
	"journal-backend/internal/metrics"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
)

// Dispatcher delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs ...notify.Message)
}

type Scheduler struct {
	store    store.Store
	notifier Dispatcher
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cron     *cron.Cron
	lock     *flock.Flock
	schedule string
	now      func() time.Time
}

func NewScheduler(cfg config.JobsConfig, st store.Store, notifier Dispatcher, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    st,
		notifier: notifier,
		logger:   logger.Named("jobs"),
		metrics:  m,
		cron:     cron.New(),
		lock:     flock.New(cfg.LockPath),
		schedule: cfg.ReminderSchedule,
		now:      store.Now,
	}
}

// Start registers the reminder job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunReminders(context.Background()); err != nil {
			s.logger.Error("reminder job failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminders %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// RunReminders sends one reminder per overdue review and copy-edit
// assignment. Only one process on the host runs it at a time; a run that
// cannot take the lock is skipped.
func (s *Scheduler) RunReminders(ctx context.Context) (int, error) {
	ok, err := s.lock.TryLock()
	if err != nil {
		return 0, fmt.Errorf("acquire reminder lock: %w", err)
	}
	if !ok {
		s.logger.Info("reminder run already in progress, skipping")
		return 0, nil
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release reminder lock", zap.Error(err))
		}
	}()

	now := s.now()
	reviews, err := s.reviewReminders(ctx, now)
	if err != nil {
		return 0, err
	}
	copyEdits, err := s.copyEditReminders(ctx, now)
	if err != nil {
		return reviews, err
	}
	s.logger.Info("reminders sent", zap.Int("reviews", reviews), zap.Int("copy_edits", copyEdits))
	return reviews + copyEdits, nil
}

func (s *Scheduler) reviewReminders(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.OverdueReviews(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue reviews: %w", err)
	}
	sent := 0
	for i := range overdue {
		r := &overdue[i]
		m, err := s.store.GetManuscript(ctx, r.ManuscriptID)
		if err != nil {
			s.logger.Warn("overdue review without manuscript", zap.String("review_id", r.ID.String()), zap.Error(err))
			continue
		}
		s.notifier.Dispatch(ctx, notify.ReviewOverdue(m, r, now))
		s.count("review")
		sent++
	}
	return sent, nil
}

func (s *Scheduler) copyEditReminders(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.OverdueCopyEdits(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue copy edits: %w", err)
	}
	for i := range overdue {
		s.notifier.Dispatch(ctx, notify.CopyEditOverdue(&overdue[i], now))
		s.count("copy_edit")
	}
	return len(overdue), nil
}

func (s *Scheduler) count(kind string) {
	if s.metrics != nil {
		s.metrics.RemindersSent.WithLabelValues(kind).Inc()
	}
}
