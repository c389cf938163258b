package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusPendingApproval = "PENDING_APPROVAL"
	StatusSuccess         = "SUCCESS"
	StatusRejected        = "REJECTED"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

type OrderRecord struct {
	OrderID       string
	UserID        int64
	Amount        int
	GrantDays     int
	ScreenshotKey string
	Status        string
	CreatedAt     time.Time
}

type EarningsRecord struct {
	Total int64
	Today int64
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Create(ctx context.Context, order OrderRecord) (OrderRecord, error) {
	if r.pool == nil {
		return OrderRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(order.OrderID) == "" || order.UserID <= 0 {
		return OrderRecord{}, fmt.Errorf("invalid order payload")
	}

	var created OrderRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO orders (order_id, user_id, amount, grant_days, screenshot_key, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
RETURNING order_id, user_id, amount, grant_days, screenshot_key, status, created_at
`, order.OrderID, order.UserID, order.Amount, order.GrantDays, order.ScreenshotKey, StatusPendingApproval).Scan(
		&created.OrderID, &created.UserID, &created.Amount, &created.GrantDays,
		&created.ScreenshotKey, &created.Status, &created.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return OrderRecord{}, ErrOrderExists
		}
		return OrderRecord{}, fmt.Errorf("create order: %w", err)
	}

	return created, nil
}

func (r *OrderRepo) Find(ctx context.Context, orderID string) (OrderRecord, error) {
	if r.pool == nil {
		return OrderRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var order OrderRecord
	err := r.pool.QueryRow(ctx, `
SELECT order_id, user_id, amount, grant_days, screenshot_key, status, created_at
FROM orders
WHERE order_id = $1
`, orderID).Scan(
		&order.OrderID, &order.UserID, &order.Amount, &order.GrantDays,
		&order.ScreenshotKey, &order.Status, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderRecord{}, ErrOrderNotFound
		}
		return OrderRecord{}, fmt.Errorf("find order: %w", err)
	}

	return order, nil
}

// MarkSuccess transitions a pending order to SUCCESS. The returned flag is
// false when the order had already left PENDING_APPROVAL, making repeated
// approvals a no-op at the storage level.
func (r *OrderRepo) MarkSuccess(ctx context.Context, orderID string) (OrderRecord, bool, error) {
	return r.transition(ctx, orderID, StatusSuccess)
}

// MarkRejected transitions a pending order to REJECTED.
func (r *OrderRepo) MarkRejected(ctx context.Context, orderID string) (OrderRecord, bool, error) {
	return r.transition(ctx, orderID, StatusRejected)
}

func (r *OrderRepo) transition(ctx context.Context, orderID, status string) (OrderRecord, bool, error) {
	if r.pool == nil {
		return OrderRecord{}, false, fmt.Errorf("postgres pool is nil")
	}

	var order OrderRecord
	err := r.pool.QueryRow(ctx, `
UPDATE orders
SET status = $2
WHERE order_id = $1 AND status = $3
RETURNING order_id, user_id, amount, grant_days, screenshot_key, status, created_at
`, orderID, status, StatusPendingApproval).Scan(
		&order.OrderID, &order.UserID, &order.Amount, &order.GrantDays,
		&order.ScreenshotKey, &order.Status, &order.CreatedAt,
	)
	if err == nil {
		return order, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return OrderRecord{}, false, fmt.Errorf("transition order to %s: %w", status, err)
	}

	// No pending row. Either the order does not exist or it was already
	// processed; the caller distinguishes via the returned record.
	existing, findErr := r.Find(ctx, orderID)
	if findErr != nil {
		return OrderRecord{}, false, findErr
	}

	return existing, false, nil
}

func (r *OrderRepo) ListPending(ctx context.Context) ([]OrderRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT order_id, user_id, amount, grant_days, screenshot_key, status, created_at
FROM orders
WHERE status = $1
ORDER BY created_at
`, StatusPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		var order OrderRecord
		if err := rows.Scan(
			&order.OrderID, &order.UserID, &order.Amount, &order.GrantDays,
			&order.ScreenshotKey, &order.Status, &order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// EarningsStats sums SUCCESS order amounts, total and for the calendar day of
// now. Computed at query time, never maintained incrementally.
func (r *OrderRepo) EarningsStats(ctx context.Context, now time.Time) (EarningsRecord, error) {
	if r.pool == nil {
		return EarningsRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var stats EarningsRecord
	err := r.pool.QueryRow(ctx, `
SELECT
	COALESCE(SUM(amount), 0),
	COALESCE(SUM(amount) FILTER (WHERE created_at::date = ($2::timestamptz)::date), 0)
FROM orders
WHERE status = $1
`, StatusSuccess, now.UTC()).Scan(&stats.Total, &stats.Today)
	if err != nil {
		return EarningsRecord{}, fmt.Errorf("earnings stats: %w", err)
	}

	return stats, nil
}
