// Package complaint is the lifecycle engine: it validates every role-scoped
// action against the workflow table, appends the audit trail and persists
// the result.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/escalation"
	"civicshield/backend/internal/localization"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/notify"
	"civicshield/backend/internal/storage"

	"go.uber.org/zap"
)

// Enqueuer hands a submitted complaint to the analysis pipeline without
// waiting for it.
type Enqueuer interface {
	Enqueue(complaintID string) bool
}

// Publisher broadcasts committed status changes.
type Publisher interface {
	Publish(ctx context.Context, ev models.StatusEvent) error
}

// Authorizer decides role and ownership questions.
type Authorizer interface {
	Allow(ctx context.Context, req authz.Request) (bool, error)
}

// Deps groups the collaborators of a Service. Only Storage and Authz are
// required.
type Deps struct {
	Storage   storage.Storage
	Authz     Authorizer
	Directory *config.Directory
	Notifier  notify.Notifier
	Publisher Publisher
	Messages  *localization.Localizer
	Language  string
	Deadline  func(from time.Time) time.Time
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

// Service handles the business logic for complaints.
type Service struct {
	storage   storage.Storage
	authz     Authorizer
	directory *config.Directory
	notifier  notify.Notifier
	publisher Publisher
	messages  *localization.Localizer
	lang      string
	deadline  func(time.Time) time.Time
	log       *zap.Logger
	metrics   *metrics.Metrics
	enqueuer  Enqueuer
	locks     *keyedMutex
	now       func() time.Time
}

// NewService creates a new complaint service.
func NewService(d Deps) *Service {
	if d.Messages == nil {
		d.Messages = localization.Default()
	}
	if d.Language == "" {
		d.Language = localization.DefaultLanguage
	}
	if d.Deadline == nil {
		d.Deadline = escalation.Deadline
	}
	return &Service{
		storage:   d.Storage,
		authz:     d.Authz,
		directory: d.Directory,
		notifier:  d.Notifier,
		publisher: d.Publisher,
		messages:  d.Messages,
		lang:      d.Language,
		deadline:  d.Deadline,
		log:       logger.OrNop(d.Log).Named("complaint"),
		metrics:   d.Metrics,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetEnqueuer connects the analysis pipeline. It must be called before the
// service handles submissions.
func (s *Service) SetEnqueuer(e Enqueuer) {
	s.enqueuer = e
}

func (s *Service) msg(key string, args ...interface{}) string {
	return s.messages.Format(s.lang, key, args...)
}

// change is one history entry to append.
type change struct {
	step    step
	message string
	actor   models.Actor
}

func (s *Service) load(ctx context.Context, id string) (*models.Complaint, error) {
	c, err := s.storage.FindComplaint(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{ComplaintID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load complaint %s: %w", id, err)
	}
	return c, nil
}

func (s *Service) authorize(ctx context.Context, actor models.Actor, action authz.Action, c *models.Complaint) error {
	req := authz.Request{Actor: actor, Action: action}
	if c != nil {
		req.OwnerID = c.OwnerID
		req.Department = c.Department
	}
	ok, err := s.authz.Allow(ctx, req)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", action, err)
	}
	if !ok {
		e := &AuthorizationError{ActorID: actor.ID, Action: string(action)}
		if c != nil {
			e.ComplaintID = c.ComplaintID
		}
		return e
	}
	return nil
}

// mutate runs fn on a freshly loaded complaint while holding the lock for
// id, appends the entries fn returns and persists the result. fn may also
// change fields of the complaint. Nothing is written when fn fails or
// returns no entries.
func (s *Service) mutate(
	ctx context.Context,
	actor models.Actor,
	action authz.Action,
	id string,
	fn func(c *models.Complaint, now time.Time) ([]change, error),
) (*models.Complaint, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, action, c); err != nil {
		return nil, err
	}

	now := s.now()
	changes, err := fn(c, now)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return c, nil
	}
	entries, err := s.apply(c, changes, now)
	if err != nil {
		return nil, err
	}
	if err := s.storage.UpdateComplaint(ctx, c, entries...); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("save complaint %s: %w", id, err)
	}
	copy(c.History[len(c.History)-len(entries):], entries)
	s.committed(ctx, c, entries)
	return c, nil
}

// apply checks every change against the workflow table and appends the
// resulting entries to c. Timestamps never go backwards.
func (s *Service) apply(c *models.Complaint, changes []change, now time.Time) ([]models.StatusEntry, error) {
	ts := now
	if last := c.LastEntry(); last != nil && last.Timestamp.After(ts) {
		ts = last.Timestamp
	}

	status := c.Status
	entries := make([]models.StatusEntry, 0, len(changes))
	for _, ch := range changes {
		if !ch.step.allowed(status) {
			return nil, &InvalidTransitionError{ComplaintID: c.ComplaintID, Action: string(ch.step), From: status}
		}
		status = ch.step.target(status)
		entries = append(entries, models.StatusEntry{
			ComplaintRef: c.ID,
			Seq:          len(c.History) + len(entries) + 1,
			Status:       status,
			Message:      ch.message,
			Actor:        ch.actor.HistoryLabel(),
			Timestamp:    ts,
		})
	}
	c.Status = status
	c.History = append(c.History, entries...)
	return entries, nil
}

func (s *Service) committed(ctx context.Context, c *models.Complaint, entries []models.StatusEntry) {
	for _, e := range entries {
		s.metrics.Transition(e.Status.String())
		if s.publisher == nil {
			continue
		}
		ev := models.StatusEvent{
			ComplaintID: c.ComplaintID,
			Status:      e.Status,
			Message:     e.Message,
			Actor:       e.Actor,
			Timestamp:   e.Timestamp,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("failed to publish status event",
				zap.String("complaint_id", c.ComplaintID), zap.String("status", e.Status.String()), zap.Error(err))
		}
	}
}
