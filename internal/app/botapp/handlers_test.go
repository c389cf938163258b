package botapp

import (
	"context"
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"

	"github.com/Monu5641000/Telegram-bot/internal/config"
	tginfra "github.com/Monu5641000/Telegram-bot/internal/infra/telegram"
	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	"github.com/Monu5641000/Telegram-bot/internal/services/cursor"
	planssvc "github.com/Monu5641000/Telegram-bot/internal/services/plans"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

type userStoreStub struct {
	records  map[int64]pgrepo.UserRecord
	created  []int64
	startRef []int64
}

func newUserStoreStub() *userStoreStub {
	return &userStoreStub{records: make(map[int64]pgrepo.UserRecord)}
}

func (s *userStoreStub) GetOrCreate(_ context.Context, userID, startRef int64) (pgrepo.UserRecord, error) {
	if record, ok := s.records[userID]; ok {
		return record, nil
	}
	record := pgrepo.UserRecord{UserID: userID, Cursor: startRef}
	s.records[userID] = record
	s.created = append(s.created, userID)
	s.startRef = append(s.startRef, startRef)
	return record, nil
}

func (s *userStoreStub) Find(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	record, ok := s.records[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return record, nil
}

// ledgerStub mirrors the real ledger: access checks for a user with no row
// surface ErrUserNotFound instead of a plain inactive answer.
type ledgerStub struct {
	users  *userStoreStub
	active map[int64]bool
}

func (l *ledgerStub) CheckAccess(_ context.Context, userID int64) (subs.Access, error) {
	if _, ok := l.users.records[userID]; !ok {
		return subs.Access{}, pgrepo.ErrUserNotFound
	}
	return subs.Access{Active: l.active[userID]}, nil
}

type engineStub struct {
	delivery cursor.Delivery
	err      error
	advanced int
}

func (e *engineStub) Advance(_ context.Context, _, _ int64, _ cursor.Direction) (cursor.Delivery, error) {
	e.advanced++
	if e.err != nil {
		return cursor.Delivery{}, e.err
	}
	return e.delivery, nil
}

func (e *engineStub) DeliverCurrent(_ context.Context, _, _ int64) (cursor.Delivery, error) {
	if e.err != nil {
		return cursor.Delivery{}, e.err
	}
	return e.delivery, nil
}

type planCatalogStub struct{}

func (planCatalogStub) Keyboard(_ bool) []planssvc.Button {
	return []planssvc.Button{{Label: "Demo", Data: "plan_Demo"}}
}

func (planCatalogStub) Select(_ context.Context, _ int64, _ string) (planssvc.Selection, error) {
	return planssvc.Selection{}, planssvc.ErrPlanNotFound
}

type chatRecorder struct {
	texts     []string
	callbacks []string
	alerts    []string
	withdrawn []int
	planMenus int
}

func (c *chatRecorder) SendText(_ context.Context, _ int64, text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func (c *chatRecorder) SendPhoto(_ context.Context, _ int64, _ string, _ []byte, _ string) error {
	return nil
}

func (c *chatRecorder) SendPlanKeyboard(_ context.Context, _ int64, _ string, _ []tginfra.PlanButton) error {
	c.planMenus++
	return nil
}

func (c *chatRecorder) AnswerCallback(_ context.Context, _ string, text string) error {
	c.callbacks = append(c.callbacks, text)
	return nil
}

func (c *chatRecorder) AnswerCallbackAlert(_ context.Context, _ string, text string) error {
	c.alerts = append(c.alerts, text)
	return nil
}

func (c *chatRecorder) Withdraw(_ context.Context, _ int64, messageID int) error {
	c.withdrawn = append(c.withdrawn, messageID)
	return nil
}

func (c *chatRecorder) DownloadPhoto(_ context.Context, _ string) (io.ReadCloser, int64, string, string, error) {
	return nil, 0, "", "", errors.New("not implemented")
}

func testApp(users *userStoreStub, ledger *ledgerStub, engine *engineStub, chat *chatRecorder) *App {
	return &App{
		cfg:    config.Default(),
		logger: zap.NewNop(),
		chat:   chat,
		users:  users,
		ledger: ledger,
		engine: engine,
		plans:  planCatalogStub{},
	}
}

func navUpdate(userID int64, messageID int) tginfra.CallbackUpdate {
	return tginfra.CallbackUpdate{
		CallbackID: "cb1",
		ChatID:     userID,
		MessageID:  messageID,
		UserID:     userID,
		Data:       "nav_next",
	}
}

func TestNavigationCreatesMissingUser(t *testing.T) {
	users := newUserStoreStub()
	ledger := &ledgerStub{users: users, active: map[int64]bool{}}
	chat := &chatRecorder{}
	app := testApp(users, ledger, &engineStub{}, chat)

	err := app.handleCallback(context.Background(), navUpdate(77, 500))
	if err != nil {
		t.Fatalf("navigation for unknown user must not fail, got %v", err)
	}

	if len(users.created) != 1 || users.created[0] != 77 {
		t.Fatalf("expected user row created for 77, got %v", users.created)
	}
	if users.startRef[0] != config.Default().Content.StartRef {
		t.Fatalf("expected cursor seeded at start ref, got %d", users.startRef[0])
	}
	if len(chat.alerts) != 1 || chat.alerts[0] != expiredAlertText {
		t.Fatalf("expected expiry alert, got %v", chat.alerts)
	}
	if chat.planMenus != 1 {
		t.Fatalf("expected plan menu sent once, got %d", chat.planMenus)
	}
}

func TestNavigationKeepsShownItemOnEmptyCatalog(t *testing.T) {
	users := newUserStoreStub()
	users.records[42] = pgrepo.UserRecord{UserID: 42, Subscribed: true, Cursor: 5}
	ledger := &ledgerStub{users: users, active: map[int64]bool{42: true}}
	engine := &engineStub{err: cursor.ErrNoContent}
	chat := &chatRecorder{}
	app := testApp(users, ledger, engine, chat)

	err := app.handleCallback(context.Background(), navUpdate(42, 500))
	if err != nil {
		t.Fatalf("empty catalog must be reported, not fail: %v", err)
	}

	if len(chat.withdrawn) != 0 {
		t.Fatalf("pressed message must stay when nothing was delivered, got %v", chat.withdrawn)
	}
	if len(chat.alerts) != 1 || chat.alerts[0] != noContentText {
		t.Fatalf("expected no-content alert, got %v", chat.alerts)
	}
}

func TestNavigationWithdrawsAfterDelivery(t *testing.T) {
	users := newUserStoreStub()
	users.records[42] = pgrepo.UserRecord{UserID: 42, Subscribed: true, Cursor: 5}
	ledger := &ledgerStub{users: users, active: map[int64]bool{42: true}}
	engine := &engineStub{delivery: cursor.Delivery{Ref: 6, Handle: 501}}
	chat := &chatRecorder{}
	app := testApp(users, ledger, engine, chat)

	err := app.handleCallback(context.Background(), navUpdate(42, 500))
	if err != nil {
		t.Fatalf("navigation: %v", err)
	}

	if engine.advanced != 1 {
		t.Fatalf("expected a single advance, got %d", engine.advanced)
	}
	if len(chat.withdrawn) != 1 || chat.withdrawn[0] != 500 {
		t.Fatalf("expected pressed message 500 withdrawn, got %v", chat.withdrawn)
	}
	if len(chat.callbacks) != 1 || chat.callbacks[0] != "" {
		t.Fatalf("expected silent callback ack, got %v", chat.callbacks)
	}
}

func TestNavigationReportsLoop(t *testing.T) {
	users := newUserStoreStub()
	users.records[42] = pgrepo.UserRecord{UserID: 42, Subscribed: true, Cursor: 9}
	ledger := &ledgerStub{users: users, active: map[int64]bool{42: true}}
	engine := &engineStub{delivery: cursor.Delivery{Ref: 1, Handle: 502, Looped: true}}
	chat := &chatRecorder{}
	app := testApp(users, ledger, engine, chat)

	if err := app.handleCallback(context.Background(), navUpdate(42, 500)); err != nil {
		t.Fatalf("navigation: %v", err)
	}
	if len(chat.callbacks) != 1 || chat.callbacks[0] != loopedText {
		t.Fatalf("expected loop notice, got %v", chat.callbacks)
	}
}
