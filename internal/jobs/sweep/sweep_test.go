package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

type userStoreStub struct {
	users   []pgrepo.UserRecord
	cleared []int64
	listErr error
}

func (s *userStoreStub) List(_ context.Context) ([]pgrepo.UserRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]pgrepo.UserRecord, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *userStoreStub) ClearLastDelivered(_ context.Context, userID int64) error {
	s.cleared = append(s.cleared, userID)
	for i := range s.users {
		if s.users[i].UserID == userID {
			s.users[i].LastDeliveredID = nil
		}
	}
	return nil
}

type ledgerStub struct {
	active map[int64]bool
	errs   map[int64]error
}

func (s *ledgerStub) CheckAccess(_ context.Context, userID int64) (subs.Access, error) {
	if err := s.errs[userID]; err != nil {
		return subs.Access{}, err
	}
	return subs.Access{Active: s.active[userID]}, nil
}

type messengerStub struct {
	withdrawn   []int
	prompted    []int64
	withdrawErr error
}

func (s *messengerStub) Withdraw(_ context.Context, _ int64, messageID int) error {
	if s.withdrawErr != nil {
		return s.withdrawErr
	}
	s.withdrawn = append(s.withdrawn, messageID)
	return nil
}

func (s *messengerStub) SendRenewalPrompt(_ context.Context, chatID int64) error {
	s.prompted = append(s.prompted, chatID)
	return nil
}

func msgID(id int) *int {
	return &id
}

func TestRunWithdrawsLapsedUsers(t *testing.T) {
	users := &userStoreStub{users: []pgrepo.UserRecord{
		{UserID: 1, LastDeliveredID: msgID(100)},
		{UserID: 2, LastDeliveredID: msgID(200)},
		{UserID: 3},
	}}
	ledger := &ledgerStub{active: map[int64]bool{2: true}}
	messenger := &messengerStub{}

	job := NewJob(users, ledger, messenger, zap.NewNop())
	job.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(messenger.withdrawn) != 1 || messenger.withdrawn[0] != 100 {
		t.Fatalf("expected only message 100 withdrawn, got %v", messenger.withdrawn)
	}
	if len(messenger.prompted) != 1 || messenger.prompted[0] != 1 {
		t.Fatalf("expected renewal prompt for user 1, got %v", messenger.prompted)
	}
	if len(users.cleared) != 1 || users.cleared[0] != 1 {
		t.Fatalf("expected cleared delivery for user 1, got %v", users.cleared)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	users := &userStoreStub{users: []pgrepo.UserRecord{
		{UserID: 1, LastDeliveredID: msgID(100)},
	}}
	ledger := &ledgerStub{active: map[int64]bool{}}
	messenger := &messengerStub{}

	job := NewJob(users, ledger, messenger, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(messenger.withdrawn) != 1 {
		t.Fatalf("expected a single withdrawal, got %v", messenger.withdrawn)
	}
	if len(users.cleared) != 1 {
		t.Fatalf("expected a single clear, got %v", users.cleared)
	}
}

func TestRunContinuesPastFailingUser(t *testing.T) {
	users := &userStoreStub{users: []pgrepo.UserRecord{
		{UserID: 1, LastDeliveredID: msgID(100)},
		{UserID: 2, LastDeliveredID: msgID(200)},
	}}
	ledger := &ledgerStub{
		active: map[int64]bool{},
		errs:   map[int64]error{1: errors.New("storage down")},
	}
	messenger := &messengerStub{}

	job := NewJob(users, ledger, messenger, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(messenger.withdrawn) != 1 || messenger.withdrawn[0] != 200 {
		t.Fatalf("expected user 2 still swept, got %v", messenger.withdrawn)
	}
}

func TestRunStillClearsWhenWithdrawFails(t *testing.T) {
	users := &userStoreStub{users: []pgrepo.UserRecord{
		{UserID: 1, LastDeliveredID: msgID(100)},
	}}
	ledger := &ledgerStub{active: map[int64]bool{}}
	messenger := &messengerStub{withdrawErr: errors.New("message to delete not found")}

	job := NewJob(users, ledger, messenger, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(users.cleared) != 1 {
		t.Fatalf("expected delivery record cleared despite withdraw failure, got %v", users.cleared)
	}
}
