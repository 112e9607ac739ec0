// Package escalation computes authority deadlines and periodically moves
// overdue complaints to the escalated state.
package escalation

import (
	"context"
	"time"

	"civicshield/backend/internal/config"
	"civicshield/backend/internal/localization"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/notify"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

// LockKey is the redis key guarding a sweep across replicas.
const LockKey = "civicshield:escalation:sweep"

// Deadline advances from one calendar day at a time, keeping the wall-clock
// time, and returns the instant at which the sixth Monday-to-Friday day has
// been counted.
func Deadline(from time.Time) time.Time {
	d := from
	for counted := 0; counted < config.EscalationBusinessDays; {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			counted++
		}
	}
	return d
}

// Escalator performs the automatic escalated transition. It reports false
// when the complaint was no longer eligible.
type Escalator interface {
	MarkEscalated(ctx context.Context, complaintID string) (*models.Complaint, bool, error)
}

// Store finds complaints whose authority deadline has passed.
type Store interface {
	FindOverdue(ctx context.Context, now time.Time) ([]models.Complaint, error)
}

// Locker hands out a cross-replica lock. ok is false when another holder
// owns it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Deps groups the collaborators of a Scheduler. Locker, Notifier, Messages
// and Metrics are optional.
type Deps struct {
	Store     Store
	Escalator Escalator
	Locker    Locker
	Notifier  notify.Notifier
	Messages  *localization.Localizer
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	Interval  time.Duration
	LockTTL   time.Duration
}

// Scheduler sweeps for overdue complaints on a fixed period.
type Scheduler struct {
	store     Store
	escalator Escalator
	locker    Locker
	notifier  notify.Notifier
	messages  *localization.Localizer
	log       *zap.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	lockTTL   time.Duration
	now       func() time.Time
}

func NewScheduler(d Deps) *Scheduler {
	if d.Interval <= 0 {
		d.Interval = config.EscalationInterval
	}
	if d.LockTTL <= 0 {
		d.LockTTL = 5 * time.Minute
	}
	if d.Messages == nil {
		d.Messages = localization.Default()
	}
	return &Scheduler{
		store:     d.Store,
		escalator: d.Escalator,
		locker:    d.Locker,
		notifier:  d.Notifier,
		messages:  d.Messages,
		log:       logger.OrNop(d.Log).Named("escalation"),
		metrics:   d.Metrics,
		interval:  d.Interval,
		lockTTL:   d.LockTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("escalation scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("escalation scheduler stopped")
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep escalates every overdue complaint and returns how many changed.
// Failures are logged; a sweep never returns an error.
func (s *Scheduler) Sweep(ctx context.Context) int {
	if s.locker != nil {
		release, ok, err := s.locker.AcquireLock(ctx, LockKey, s.lockTTL)
		switch {
		case err != nil:
			s.log.Warn("sweep lock unavailable, sweeping unlocked", zap.Error(err))
		case !ok:
			s.log.Debug("another replica holds the sweep lock")
			return 0
		default:
			defer release()
		}
	}

	now := s.now()
	overdue, err := s.store.FindOverdue(ctx, now)
	if err != nil {
		s.log.Error("failed to load overdue complaints", zap.Error(err))
		sentry.CaptureException(err)
		return 0
	}

	escalated := 0
	for i := range overdue {
		if ctx.Err() != nil {
			break
		}
		id := overdue[i].ComplaintID
		c, changed, err := s.escalator.MarkEscalated(ctx, id)
		if err != nil {
			s.log.Error("failed to escalate complaint", zap.String("complaint_id", id), zap.Error(err))
			sentry.CaptureException(err)
			continue
		}
		if !changed {
			continue
		}
		escalated++
		s.metrics.Escalation()
		s.log.Info("complaint escalated due to non-response", zap.String("complaint_id", id))
		s.notifyOwner(ctx, c)
	}
	return escalated
}

func (s *Scheduler) notifyOwner(ctx context.Context, c *models.Complaint) {
	if s.notifier == nil || c == nil {
		return
	}
	msg := notify.Message{
		To:        c.AnonymousID,
		Subject:   s.messages.Format(localization.DefaultLanguage, "notify.escalated.subject", c.ComplaintID),
		Body:      s.messages.Format(localization.DefaultLanguage, "notify.escalated.body", c.ComplaintID),
		Reference: c.ComplaintID,
	}
	if _, err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Warn("escalation notification failed", zap.String("complaint_id", c.ComplaintID), zap.Error(err))
	}
}
