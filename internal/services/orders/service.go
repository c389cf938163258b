package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyProcessed = errors.New("order already processed")
)

type OrderStore interface {
	Create(ctx context.Context, order pgrepo.OrderRecord) (pgrepo.OrderRecord, error)
	Find(ctx context.Context, orderID string) (pgrepo.OrderRecord, error)
	MarkSuccess(ctx context.Context, orderID string) (pgrepo.OrderRecord, bool, error)
	MarkRejected(ctx context.Context, orderID string) (pgrepo.OrderRecord, bool, error)
	ListPending(ctx context.Context) ([]pgrepo.OrderRecord, error)
	EarningsStats(ctx context.Context, now time.Time) (pgrepo.EarningsRecord, error)
}

type UserStore interface {
	GetOrCreate(ctx context.Context, userID, startRef int64) (pgrepo.UserRecord, error)
}

type Ledger interface {
	Grant(ctx context.Context, userID int64, duration time.Duration) (subs.Access, error)
}

type Service struct {
	orders   OrderStore
	users    UserStore
	ledger   Ledger
	startRef int64
	now      func() time.Time
	logger   *zap.Logger
}

type Stats struct {
	Total int64
	Today int64
}

func NewService(orders OrderStore, users UserStore, ledger Ledger, startRef int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		orders:   orders,
		users:    users,
		ledger:   ledger,
		startRef: startRef,
		now:      time.Now,
		logger:   logger,
	}
}

// Create records a manual payment awaiting admin approval.
func (s *Service) Create(ctx context.Context, userID int64, amount int, screenshotKey string, grantDays int) (pgrepo.OrderRecord, error) {
	if userID <= 0 || grantDays <= 0 {
		return pgrepo.OrderRecord{}, ErrValidation
	}
	if s.orders == nil {
		return pgrepo.OrderRecord{}, fmt.Errorf("order store is nil")
	}

	order, err := s.orders.Create(ctx, pgrepo.OrderRecord{
		OrderID:       newOrderID(),
		UserID:        userID,
		Amount:        amount,
		GrantDays:     grantDays,
		ScreenshotKey: screenshotKey,
	})
	if err != nil {
		return pgrepo.OrderRecord{}, err
	}

	return order, nil
}

// Approve transitions the order to SUCCESS and grants the subscription it
// paid for. Repeated approvals report ErrAlreadyProcessed and never extend
// the expiry a second time.
func (s *Service) Approve(ctx context.Context, orderID string) (pgrepo.OrderRecord, error) {
	if strings.TrimSpace(orderID) == "" {
		return pgrepo.OrderRecord{}, ErrValidation
	}
	if s.orders == nil || s.ledger == nil {
		return pgrepo.OrderRecord{}, fmt.Errorf("order workflow dependencies are not configured")
	}

	order, changed, err := s.orders.MarkSuccess(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrOrderNotFound) {
			return pgrepo.OrderRecord{}, ErrOrderNotFound
		}
		return pgrepo.OrderRecord{}, err
	}
	if !changed {
		return order, ErrAlreadyProcessed
	}

	if s.users != nil {
		// An order may reference a user the store has never seen (created
		// out of band). Upsert defaults first so the grant has a row to
		// land on; noisy on purpose, this usually means bad data entry.
		if _, err := s.users.GetOrCreate(ctx, order.UserID, s.startRef); err != nil {
			return pgrepo.OrderRecord{}, fmt.Errorf("ensure order user exists: %w", err)
		}
	}

	grantDays := order.GrantDays
	if grantDays <= 0 {
		grantDays = 30
	}
	if _, err := s.ledger.Grant(ctx, order.UserID, time.Duration(grantDays)*24*time.Hour); err != nil {
		return pgrepo.OrderRecord{}, fmt.Errorf("grant subscription for order %s: %w", order.OrderID, err)
	}

	s.logger.Info("order approved",
		zap.String("order_id", order.OrderID),
		zap.Int64("user_id", order.UserID),
		zap.Int("grant_days", grantDays),
	)
	return order, nil
}

// Reject transitions the order to REJECTED. The ledger is not touched.
func (s *Service) Reject(ctx context.Context, orderID string) (pgrepo.OrderRecord, error) {
	if strings.TrimSpace(orderID) == "" {
		return pgrepo.OrderRecord{}, ErrValidation
	}
	if s.orders == nil {
		return pgrepo.OrderRecord{}, fmt.Errorf("order store is nil")
	}

	order, changed, err := s.orders.MarkRejected(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrOrderNotFound) {
			return pgrepo.OrderRecord{}, ErrOrderNotFound
		}
		return pgrepo.OrderRecord{}, err
	}
	if !changed {
		return order, ErrAlreadyProcessed
	}

	s.logger.Info("order rejected", zap.String("order_id", order.OrderID), zap.Int64("user_id", order.UserID))
	return order, nil
}

func (s *Service) ListPending(ctx context.Context) ([]pgrepo.OrderRecord, error) {
	if s.orders == nil {
		return nil, fmt.Errorf("order store is nil")
	}
	return s.orders.ListPending(ctx)
}

// Stats sums SUCCESS amounts at query time: all-time and for the current
// calendar day.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.orders == nil {
		return Stats{}, fmt.Errorf("order store is nil")
	}

	rec, err := s.orders.EarningsStats(ctx, s.now())
	if err != nil {
		return Stats{}, err
	}

	return Stats{Total: rec.Total, Today: rec.Today}, nil
}

func newOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
