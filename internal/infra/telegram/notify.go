package telegram

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	notifyAttempts   = 3
	notifyRetryDelay = time.Second
)

// Notifier sends one-off service messages to users, retrying transient
// Telegram failures before giving up.
type Notifier struct {
	bot    *Bot
	logger *zap.Logger
}

func NewNotifier(bot *Bot, logger *zap.Logger) *Notifier {
	return &Notifier{
		bot:    bot,
		logger: logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	var lastErr error
	for attempt := 1; attempt <= notifyAttempts; attempt++ {
		lastErr = n.bot.SendText(ctx, chatID, text)
		if lastErr == nil {
			return nil
		}

		n.logger.Warn("notify attempt failed",
			zap.Int64("chat_id", chatID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt < notifyAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(notifyRetryDelay):
			}
		}
	}

	return fmt.Errorf("notify chat %d: %w", chatID, lastErr)
}

func (n *Notifier) SendRenewalPrompt(ctx context.Context, chatID int64) error {
	return n.Notify(ctx, chatID, "Your subscription has expired. Please renew to continue enjoying the content.")
}
