package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

type UserStore interface {
	List(ctx context.Context) ([]pgrepo.UserRecord, error)
	ClearLastDelivered(ctx context.Context, userID int64) error
}

type Ledger interface {
	CheckAccess(ctx context.Context, userID int64) (subs.Access, error)
}

type Messenger interface {
	Withdraw(ctx context.Context, chatID int64, messageID int) error
	SendRenewalPrompt(ctx context.Context, chatID int64) error
}

// Job scans all users, flips lapsed subscriptions and withdraws the last
// delivered message from chats that lost access.
type Job struct {
	users     UserStore
	ledger    Ledger
	messenger Messenger
	now       func() time.Time
	logger    *zap.Logger
}

func NewJob(users UserStore, ledger Ledger, messenger Messenger, logger *zap.Logger) *Job {
	return &Job{
		users:     users,
		ledger:    ledger,
		messenger: messenger,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	started := j.now()

	users, err := j.users.List(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var revoked int
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}

		withdrew, err := j.sweepUser(ctx, user)
		if err != nil {
			j.logger.Warn("sweep user failed",
				zap.Int64("user_id", user.UserID),
				zap.Error(err))
			continue
		}
		if withdrew {
			revoked++
		}
	}

	if revoked > 0 {
		j.logger.Info("expiry sweep finished",
			zap.Int("revoked", revoked),
			zap.Duration("took", j.now().Sub(started)))
	}

	return nil
}

func (j *Job) sweepUser(ctx context.Context, user pgrepo.UserRecord) (bool, error) {
	access, err := j.ledger.CheckAccess(ctx, user.UserID)
	if err != nil {
		return false, fmt.Errorf("check access: %w", err)
	}
	if access.Active || user.LastDeliveredID == nil {
		return false, nil
	}

	if err := j.messenger.Withdraw(ctx, user.UserID, *user.LastDeliveredID); err != nil {
		j.logger.Warn("withdraw delivered message failed",
			zap.Int64("user_id", user.UserID),
			zap.Int("message_id", *user.LastDeliveredID),
			zap.Error(err))
	}

	if err := j.messenger.SendRenewalPrompt(ctx, user.UserID); err != nil {
		j.logger.Warn("renewal prompt failed",
			zap.Int64("user_id", user.UserID),
			zap.Error(err))
	}

	if err := j.users.ClearLastDelivered(ctx, user.UserID); err != nil {
		return false, fmt.Errorf("clear last delivered: %w", err)
	}

	return true, nil
}
