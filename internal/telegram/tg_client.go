// Package telegram delivers notices to an operations chat and answers
// status queries sent to the bot.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MaxMessageLength is the Telegram limit for one text message.
const MaxMessageLength = 4096

// Sender is the part of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier implements notify.Notifier by posting to a single chat.
type Notifier struct {
	bot    Sender
	chatID int64
	log    *zap.Logger
	now    func() time.Time
}

// NewNotifier wraps an authorized bot.
func NewNotifier(bot Sender, chatID int64, log *zap.Logger) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, log: logger.OrNop(log).Named("telegram"), now: time.Now}
}

// NewBotAPI authorizes token against the Telegram API.
func NewBotAPI(token string, log *zap.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram authorize: %w", err)
	}
	bot.Debug = false
	logger.OrNop(log).Info("telegram bot authorized", zap.String("account", bot.Self.UserName))
	return bot, nil
}

func (n *Notifier) Send(ctx context.Context, msg notify.Message) (notify.Receipt, error) {
	receipt := notify.Receipt{Channel: "telegram"}
	if n.chatID == 0 {
		return receipt, fmt.Errorf("telegram: no chat configured")
	}

	for i, chunk := range splitText(formatMessage(msg), MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return receipt, err
		}
		if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, chunk)); err != nil {
			n.log.Error("failed to send telegram message",
				zap.String("reference", msg.Reference), zap.Int("part", i+1), zap.Error(err))
			return receipt, fmt.Errorf("telegram send part %d: %w", i+1, err)
		}
	}
	receipt.Success = true
	receipt.SentAt = n.now().UTC()
	return receipt, nil
}

func formatMessage(msg notify.Message) string {
	var b strings.Builder
	b.WriteString(msg.Subject)
	if msg.To != "" {
		b.WriteString("\nTo: ")
		b.WriteString(msg.To)
	}
	if msg.Reference != "" {
		b.WriteString("\nReference: ")
		b.WriteString(msg.Reference)
	}
	b.WriteString("\n\n")
	b.WriteString(strings.TrimSpace(msg.Body))
	return b.String()
}

// splitText cuts s into chunks of at most limit runes, preferring line breaks.
func splitText(s string, limit int) []string {
	var out []string
	for utf8.RuneCountInString(s) > limit {
		cut := byteOffset(s, limit)
		if nl := strings.LastIndexByte(s[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func byteOffset(s string, runes int) int {
	i := 0
	for pos := range s {
		if i == runes {
			return pos
		}
		i++
	}
	return len(s)
}
