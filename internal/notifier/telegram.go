package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"PriceOptimizer/internal/model"
)

// Notifier announces record changes.
type Notifier interface {
	NotifyOptimization(ctx context.Context, rec *model.Record, event model.EventType) error
}

// NoopNotifier drops every notification. Used when Telegram is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyOptimization(context.Context, *model.Record, model.EventType) error {
	return nil
}

// sender is the subset of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends messages to one chat via the Telegram Bot API.
type TelegramNotifier struct {
	bot        sender
	chatID     int64
	maxRetries int
	backoff    time.Duration
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	slog.Info("telegram notifier ready", "bot", bot.Self.UserName, "chat_id", chatID)
	return &TelegramNotifier{bot: bot, chatID: chatID, maxRetries: 3, backoff: time.Second}, nil
}

// Send sends a message to the configured chat.
func (t *TelegramNotifier) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := t.Send(text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := t.backoff << uint(i)
		slog.Warn("telegram send failed", "attempt", i+1, "of", maxRetries+1, "err", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

func (t *TelegramNotifier) NotifyOptimization(ctx context.Context, rec *model.Record, event model.EventType) error {
	return t.SendWithRetry(ctx, FormatOptimization(rec, event), t.maxRetries)
}
