package subs

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

// Store is the slice of the user repository the ledger needs. The ledger is
// the only writer of the subscribed/expiry pair.
type Store interface {
	Find(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
	SetSubscription(ctx context.Context, userID int64, expiry time.Time) error
	ClearSubscription(ctx context.Context, userID int64) error
	ExpireIfPast(ctx context.Context, userID int64, now time.Time) (bool, error)
}

type Access struct {
	Active    bool
	ExpiresAt *time.Time
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// CheckAccess reports whether the user may see content right now. When the
// stored state says subscribed but the expiry has passed, the subscription is
// flipped off first, so access control stays correct even when the periodic
// sweep is delayed or down.
func (l *Ledger) CheckAccess(ctx context.Context, userID int64) (Access, error) {
	if userID <= 0 {
		return Access{}, ErrValidation
	}
	if l.store == nil {
		return Access{}, fmt.Errorf("ledger store is nil")
	}

	if _, err := l.store.ExpireIfPast(ctx, userID, l.now()); err != nil {
		return Access{}, err
	}

	user, err := l.store.Find(ctx, userID)
	if err != nil {
		return Access{}, err
	}

	if !user.Subscribed || user.ExpiresAt == nil {
		return Access{}, nil
	}

	return Access{Active: true, ExpiresAt: user.ExpiresAt}, nil
}

// Grant activates access for the given duration from now. A later grant
// overwrites an earlier expiry; purchases do not stack.
func (l *Ledger) Grant(ctx context.Context, userID int64, duration time.Duration) (Access, error) {
	if userID <= 0 || duration <= 0 {
		return Access{}, ErrValidation
	}
	if l.store == nil {
		return Access{}, fmt.Errorf("ledger store is nil")
	}

	expiry := l.now().UTC().Add(duration)
	if err := l.store.SetSubscription(ctx, userID, expiry); err != nil {
		return Access{}, err
	}

	return Access{Active: true, ExpiresAt: &expiry}, nil
}

// Revoke force-expires the user. Idempotent.
func (l *Ledger) Revoke(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrValidation
	}
	if l.store == nil {
		return fmt.Errorf("ledger store is nil")
	}

	return l.store.ClearSubscription(ctx, userID)
}
