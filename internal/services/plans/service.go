package plans

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/Monu5641000/Telegram-bot/internal/config"
	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	redrepo "github.com/Monu5641000/Telegram-bot/internal/repo/redis"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrDemoUsed     = errors.New("demo already used")
	ErrUnknownUser  = errors.New("unknown user")
)

type UserStore interface {
	Find(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
	MarkDemoUsed(ctx context.Context, userID int64) (bool, error)
}

type Ledger interface {
	Grant(ctx context.Context, userID int64, duration time.Duration) (subs.Access, error)
}

type PendingStore interface {
	Set(ctx context.Context, userID int64, record redrepo.PendingRecord, ttl time.Duration) error
}

type Service struct {
	catalog []config.PlanConfig
	users   UserStore
	ledger  Ledger
	pending PendingStore
	payment config.PaymentConfig
}

// Button is one row of the plan keyboard.
type Button struct {
	Label string
	Data  string
}

// Selection is the outcome of a plan pick: either the demo went live
// immediately, or a payment is now expected and the QR code should be shown.
type Selection struct {
	Plan          config.PlanConfig
	DemoActivated bool
	Access        subs.Access
	QRPNG         []byte
	Caption       string
}

func NewService(
	catalog []config.PlanConfig,
	users UserStore,
	ledger Ledger,
	pending PendingStore,
	payment config.PaymentConfig,
) *Service {
	return &Service{
		catalog: catalog,
		users:   users,
		ledger:  ledger,
		pending: pending,
		payment: payment,
	}
}

// Keyboard lists the plans as inline buttons. The zero-price demo is hidden
// once the user has claimed it.
func (s *Service) Keyboard(demoUsed bool) []Button {
	buttons := make([]Button, 0, len(s.catalog))
	for _, plan := range s.catalog {
		if plan.Price == 0 && demoUsed {
			continue
		}
		buttons = append(buttons, Button{
			Label: fmt.Sprintf("%s - ₹%d", plan.Name, plan.Price),
			Data:  "plan_" + plan.Name,
		})
	}
	return buttons
}

// Select handles a plan pick. The demo grants immediately and burns the
// one-time flag; paid plans open a pending-payment session and return the
// payment QR to show.
func (s *Service) Select(ctx context.Context, userID int64, planName string) (Selection, error) {
	if userID <= 0 {
		return Selection{}, fmt.Errorf("invalid user id")
	}

	plan, ok := s.lookup(planName)
	if !ok {
		return Selection{}, ErrPlanNotFound
	}

	if plan.Price == 0 {
		return s.activateDemo(ctx, userID, plan)
	}
	return s.requestPayment(ctx, userID, plan)
}

func (s *Service) activateDemo(ctx context.Context, userID int64, plan config.PlanConfig) (Selection, error) {
	if s.users == nil || s.ledger == nil {
		return Selection{}, fmt.Errorf("plan service dependencies are not configured")
	}

	// Claiming the flag first makes the demo single-shot even under
	// concurrent presses; only the claimer proceeds to grant.
	claimed, err := s.users.MarkDemoUsed(ctx, userID)
	if err != nil {
		return Selection{}, err
	}
	if !claimed {
		// Zero rows can also mean the user row does not exist yet; tell
		// those cases apart instead of reporting a claim that never was.
		if _, err := s.users.Find(ctx, userID); err != nil {
			if errors.Is(err, pgrepo.ErrUserNotFound) {
				return Selection{}, ErrUnknownUser
			}
			return Selection{}, err
		}
		return Selection{}, ErrDemoUsed
	}

	access, err := s.ledger.Grant(ctx, userID, planDuration(plan))
	if err != nil {
		return Selection{}, err
	}

	return Selection{Plan: plan, DemoActivated: true, Access: access}, nil
}

func (s *Service) requestPayment(ctx context.Context, userID int64, plan config.PlanConfig) (Selection, error) {
	if s.pending == nil {
		return Selection{}, fmt.Errorf("pending payment store is nil")
	}

	ttl := s.payment.PendingTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	err := s.pending.Set(ctx, userID, redrepo.PendingRecord{
		PlanName:     plan.Name,
		Price:        plan.Price,
		GrantDays:    plan.Days,
		GrantMinutes: plan.Minutes,
	}, ttl)
	if err != nil {
		return Selection{}, err
	}

	png, err := qrcode.Encode(s.upiLink(plan), qrcode.Medium, 512)
	if err != nil {
		return Selection{}, fmt.Errorf("encode payment qr: %w", err)
	}

	caption := fmt.Sprintf(
		"Plan: %s\nAmount: ₹%d\n\nScan the QR code to pay.\nAfter paying, send the payment screenshot here.",
		plan.Name, plan.Price,
	)

	return Selection{Plan: plan, QRPNG: png, Caption: caption}, nil
}

func (s *Service) upiLink(plan config.PlanConfig) string {
	q := url.Values{}
	q.Set("pa", s.payment.UPIID)
	if s.payment.PayeeName != "" {
		q.Set("pn", s.payment.PayeeName)
	}
	q.Set("am", strconv.Itoa(plan.Price))
	q.Set("cu", "INR")
	q.Set("tn", plan.Name)
	return "upi://pay?" + q.Encode()
}

func (s *Service) lookup(name string) (config.PlanConfig, bool) {
	for _, plan := range s.catalog {
		if plan.Name == name {
			return plan, true
		}
	}
	return config.PlanConfig{}, false
}

func planDuration(plan config.PlanConfig) time.Duration {
	return time.Duration(plan.Days)*24*time.Hour + time.Duration(plan.Minutes)*time.Minute
}
