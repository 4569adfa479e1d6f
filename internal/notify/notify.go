// Package notify delivers short user-facing alerts: tracking warnings, the
// max-duration cutoff and goal thresholds.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// LogNotifier writes notifications to the logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, title, body string) error {
	log.Info(title, "body", body)
	return nil
}

// sender is the part of tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends each notification as a message to one chat.
type TelegramNotifier struct {
	api    sender
	chatID int64
}

func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Debug("telegram notifier authorized", "account", api.Self.UserName)
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, formatMessage(title, body))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func formatMessage(title, body string) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(escapeHTML(title))
	b.WriteString("</b>")
	if body != "" {
		b.WriteString("\n")
		b.WriteString(escapeHTML(body))
	}
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Multi fans a notification out to every notifier and returns the first
// error after trying them all.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			log.Warn("notification failed", "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
