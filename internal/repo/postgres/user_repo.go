package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	pool *pgxpool.Pool
}

// UserRecord mirrors one row of the users table. Cursor is the channel
// message id of the most recently delivered item, not an array index.
type UserRecord struct {
	UserID          int64
	Subscribed      bool
	ExpiresAt       *time.Time
	Cursor          int64
	LastDeliveredID *int
	DemoUsed        bool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// GetOrCreate inserts the user with default fields on first contact and
// returns the stored row either way.
func (r *UserRepo) GetOrCreate(ctx context.Context, userID, startRef int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO users (user_id, subscribed, expires_at, cursor, last_delivered_id, demo_used, created_at, updated_at)
VALUES ($1, FALSE, NULL, $2, NULL, FALSE, NOW(), NOW())
ON CONFLICT (user_id) DO UPDATE SET
	updated_at = NOW()
RETURNING user_id, subscribed, expires_at, cursor, last_delivered_id, demo_used
`, userID, startRef).Scan(
		&user.UserID, &user.Subscribed, &user.ExpiresAt,
		&user.Cursor, &user.LastDeliveredID, &user.DemoUsed,
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("get or create user: %w", err)
	}

	return user, nil
}

func (r *UserRepo) Find(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var user UserRecord
	err := r.pool.QueryRow(ctx, `
SELECT user_id, subscribed, expires_at, cursor, last_delivered_id, demo_used
FROM users
WHERE user_id = $1
`, userID).Scan(
		&user.UserID, &user.Subscribed, &user.ExpiresAt,
		&user.Cursor, &user.LastDeliveredID, &user.DemoUsed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user: %w", err)
	}

	return user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]UserRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT user_id, subscribed, expires_at, cursor, last_delivered_id, demo_used
FROM users
ORDER BY user_id
`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		var user UserRecord
		if err := rows.Scan(
			&user.UserID, &user.Subscribed, &user.ExpiresAt,
			&user.Cursor, &user.LastDeliveredID, &user.DemoUsed,
		); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, nil
}

// SetSubscription activates access until expiry, overwriting any previous
// expiry (last write wins, no stacking).
func (r *UserRepo) SetSubscription(ctx context.Context, userID int64, expiry time.Time) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET subscribed = TRUE, expires_at = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, expiry.UTC())
	if err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ClearSubscription deactivates access. Idempotent.
func (r *UserRepo) ClearSubscription(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET subscribed = FALSE, expires_at = NULL, updated_at = NOW()
WHERE user_id = $1
`, userID); err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}

	return nil
}

// ExpireIfPast flips subscribed off when the stored expiry has passed. The
// conditional update makes the lazy-expiry check a single atomic step, so a
// concurrent grant can never interleave into subscribed=true with no expiry.
func (r *UserRepo) ExpireIfPast(ctx context.Context, userID int64, now time.Time) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET subscribed = FALSE, expires_at = NULL, updated_at = NOW()
WHERE user_id = $1 AND subscribed AND expires_at IS NOT NULL AND expires_at <= $2
`, userID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("expire subscription: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *UserRepo) UpdateCursor(ctx context.Context, userID, cursor int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET cursor = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, cursor); err != nil {
		return fmt.Errorf("update cursor: %w", err)
	}

	return nil
}

func (r *UserRepo) SetLastDelivered(ctx context.Context, userID int64, messageID int) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET last_delivered_id = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, messageID); err != nil {
		return fmt.Errorf("set last delivered: %w", err)
	}

	return nil
}

func (r *UserRepo) ClearLastDelivered(ctx context.Context, userID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET last_delivered_id = NULL, updated_at = NOW()
WHERE user_id = $1
`, userID); err != nil {
		return fmt.Errorf("clear last delivered: %w", err)
	}

	return nil
}

// MarkDemoUsed claims the one-time demo. Returns false when it was already
// claimed, which is the guard against a second demo activation.
func (r *UserRepo) MarkDemoUsed(ctx context.Context, userID int64) (bool, error) {
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET demo_used = TRUE, updated_at = NOW()
WHERE user_id = $1 AND NOT demo_used
`, userID)
	if err != nil {
		return false, fmt.Errorf("mark demo used: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
