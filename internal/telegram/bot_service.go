package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ComplaintLookup loads a complaint without an actor check. The bot only
// answers the configured operations chat.
type ComplaintLookup interface {
	Load(ctx context.Context, complaintID string) (*models.Complaint, error)
}

// BotService answers /status and /help commands from the operations chat.
type BotService struct {
	BotAPI *tgbotapi.BotAPI
	sender Sender
	lookup ComplaintLookup
	chatID int64
	log    *zap.Logger
}

// NewBotService creates a BotService. bot may be nil in tests that drive
// handleUpdate directly.
func NewBotService(bot *tgbotapi.BotAPI, sender Sender, lookup ComplaintLookup, chatID int64, log *zap.Logger) *BotService {
	if sender == nil && bot != nil {
		sender = bot
	}
	return &BotService{
		BotAPI: bot,
		sender: sender,
		lookup: lookup,
		chatID: chatID,
		log:    logger.OrNop(log).Named("telegram_bot"),
	}
}

// Run polls for updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.handleUpdate(ctx, update)
		}
	}
}

func (s *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	if chatID != s.chatID {
		s.log.Warn("ignoring command from unknown chat", zap.Int64("chat_id", chatID))
		return
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = s.statusReply(ctx, strings.TrimSpace(msg.CommandArguments()))
	case "help", "start":
		reply = "Commands:\n/status <complaint id> - current status and latest history entry"
	default:
		return
	}

	if _, err := s.sender.Send(tgbotapi.NewMessage(chatID, reply)); err != nil {
		s.log.Error("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *BotService) statusReply(ctx context.Context, id string) string {
	if id == "" {
		return "Usage: /status <complaint id>"
	}
	c, err := s.lookup.Load(ctx, strings.ToUpper(id))
	if err != nil {
		if errors.Is(err, complaint.ErrNotFound) {
			return fmt.Sprintf("Complaint %s not found.", id)
		}
		s.log.Error("status lookup failed", zap.String("complaint_id", id), zap.Error(err))
		return "Lookup failed, try again later."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\nStatus: %s", c.ComplaintID, c.Department, c.Status)
	if c.EscalationDeadline != nil {
		fmt.Fprintf(&b, "\nDeadline: %s", c.EscalationDeadline.UTC().Format("02/01/2006 15:04 MST"))
	}
	if last := c.LastEntry(); last != nil {
		fmt.Fprintf(&b, "\nLast update: %s by %s\n%s", last.Timestamp.UTC().Format("02/01/2006 15:04"), last.Actor, last.Message)
	}
	return b.String()
}
