// Package notify delivers legal notices and owner notifications.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"

	"go.uber.org/zap"
)

// Message is one outbound notification.
type Message struct {
	To        string
	Subject   string
	Body      string
	Reference string
}

// Receipt records a delivery attempt.
type Receipt struct {
	Success bool
	SentAt  time.Time
	Channel string
}

// Notifier sends a Message.
type Notifier interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// LogMailer writes messages to the log instead of a mail server.
type LogMailer struct {
	log *zap.Logger
	now func() time.Time
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: logger.OrNop(log).Named("mailer"), now: time.Now}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{Channel: "log"}, err
	}
	to := msg.To
	if to == "" {
		to = "Concerned Authority"
	}
	reference := msg.Reference
	if reference == "" {
		reference = "N/A"
	}
	m.log.Info("email sent",
		zap.String("to", to),
		zap.String("subject", msg.Subject),
		zap.String("reference", reference),
		zap.String("body", strings.TrimSpace(msg.Body)),
	)
	return Receipt{Success: true, SentAt: m.now().UTC(), Channel: "log"}, nil
}

// Multi sends to every notifier. It succeeds when at least one delivery
// succeeds; the failures are joined into the returned error.
type Multi struct {
	notifiers []Notifier
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewMulti(log *zap.Logger, m *metrics.Metrics, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, log: logger.OrNop(log).Named("notify"), metrics: m}
}

func (m *Multi) Send(ctx context.Context, msg Message) (Receipt, error) {
	var (
		first Receipt
		errs  []error
	)
	for _, n := range m.notifiers {
		r, err := n.Send(ctx, msg)
		m.metrics.Notification(r.Channel, err == nil && r.Success)
		if err != nil {
			m.log.Warn("notification failed",
				zap.String("channel", r.Channel), zap.String("reference", msg.Reference), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if !first.Success && r.Success {
			first = r
		}
	}
	if first.Success {
		return first, nil
	}
	if len(errs) == 0 {
		return Receipt{}, errors.New("no notifier configured")
	}
	return Receipt{}, errors.Join(errs...)
}
