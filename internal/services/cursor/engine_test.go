package cursor

import (
	"context"
	"errors"
	"testing"
)

type resolverStub struct {
	available map[int64]bool
	attempts  []int64
	nextID    int
}

func newResolverStub(available ...int64) *resolverStub {
	m := make(map[int64]bool, len(available))
	for _, ref := range available {
		m[ref] = true
	}
	return &resolverStub{available: m, nextID: 1000}
}

func (r *resolverStub) Resolve(_ context.Context, _ int64, ref int64) (int, error) {
	r.attempts = append(r.attempts, ref)
	if !r.available[ref] {
		return 0, errors.New("message to copy not found")
	}
	r.nextID++
	return r.nextID, nil
}

type cursorStoreStub struct {
	cursor        int64
	lastDelivered *int
}

func (s *cursorStoreStub) UpdateCursor(_ context.Context, _ int64, cursor int64) error {
	s.cursor = cursor
	return nil
}

func (s *cursorStoreStub) SetLastDelivered(_ context.Context, _ int64, handle int) error {
	h := handle
	s.lastDelivered = &h
	return nil
}

func newTestEngine(store Store, resolver Resolver) *Engine {
	return NewEngine(store, resolver, Config{StartRef: 1, SkipBudget: 10}, nil)
}

func TestAdvanceNextDeliversImmediateNeighbor(t *testing.T) {
	resolver := newResolverStub(5)
	store := &cursorStoreStub{cursor: 4}
	engine := newTestEngine(store, resolver)

	delivery, err := engine.Advance(context.Background(), 1, 4, Next)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if delivery.Ref != 5 {
		t.Fatalf("expected delivery of ref 5, got %d", delivery.Ref)
	}
	if delivery.Looped {
		t.Fatalf("did not expect a wraparound")
	}
	if store.cursor != 5 {
		t.Fatalf("expected cursor persisted at 5, got %d", store.cursor)
	}
	if store.lastDelivered == nil || *store.lastDelivered != delivery.Handle {
		t.Fatalf("expected last delivered handle persisted")
	}
}

func TestAdvanceNextSkipsGapWithinBudget(t *testing.T) {
	// References 5..14 are all gone; 15 resolves. Ten skips burn the
	// budget exactly and the eleventh attempt lands.
	resolver := newResolverStub(15)
	store := &cursorStoreStub{cursor: 4}
	engine := newTestEngine(store, resolver)

	delivery, err := engine.Advance(context.Background(), 1, 4, Next)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if delivery.Ref != 15 {
		t.Fatalf("expected to land on ref 15, got %d", delivery.Ref)
	}
	if len(resolver.attempts) != 11 {
		t.Fatalf("expected 11 resolution attempts, got %d (%v)", len(resolver.attempts), resolver.attempts)
	}
	if resolver.attempts[0] != 5 || resolver.attempts[10] != 15 {
		t.Fatalf("unexpected attempt sequence: %v", resolver.attempts)
	}
	if store.cursor != 15 {
		t.Fatalf("expected cursor at 15, got %d", store.cursor)
	}
}

func TestAdvanceNextWrapsToStartAfterBudget(t *testing.T) {
	// Nothing resolves past the cursor, but the start of the catalog does.
	resolver := newResolverStub(1)
	store := &cursorStoreStub{cursor: 40}
	engine := newTestEngine(store, resolver)

	delivery, err := engine.Advance(context.Background(), 1, 40, Next)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if !delivery.Looped {
		t.Fatalf("expected a wraparound delivery")
	}
	if delivery.Ref != 1 {
		t.Fatalf("expected delivery from start ref, got %d", delivery.Ref)
	}
	if store.cursor != 1 {
		t.Fatalf("expected cursor reset to start, got %d", store.cursor)
	}
}

func TestAdvanceNextFullGapIsBoundedAndTerminal(t *testing.T) {
	// No reference resolves anywhere. Both passes exhaust their budget:
	// eleven attempts forward, eleven more after the wraparound, then the
	// terminal outcome. Never unbounded.
	resolver := newResolverStub()
	store := &cursorStoreStub{cursor: 1}
	engine := newTestEngine(store, resolver)

	_, err := engine.Advance(context.Background(), 1, 1, Next)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if len(resolver.attempts) != 22 {
		t.Fatalf("expected 22 resolution attempts total, got %d", len(resolver.attempts))
	}
	// Second pass starts over from the start ref.
	if resolver.attempts[11] != 1 {
		t.Fatalf("expected post-wraparound pass to start at ref 1, got %d", resolver.attempts[11])
	}
	// Cursor is left where the loop last got to.
	if store.cursor != 11 {
		t.Fatalf("expected cursor left at last persisted ref 11, got %d", store.cursor)
	}
}

func TestAdvanceNextPersistsCursorPerSkip(t *testing.T) {
	resolver := newResolverStub(8)
	store := &cursorStoreStub{cursor: 4}
	engine := newTestEngine(store, resolver)

	if _, err := engine.Advance(context.Background(), 1, 4, Next); err != nil {
		t.Fatalf("advance: %v", err)
	}
	// Attempts 5, 6, 7 failed; each failure advanced and persisted the
	// cursor before the next resolve.
	want := []int64{5, 6, 7, 8}
	if len(resolver.attempts) != len(want) {
		t.Fatalf("expected attempts %v, got %v", want, resolver.attempts)
	}
	for i, ref := range want {
		if resolver.attempts[i] != ref {
			t.Fatalf("expected attempts %v, got %v", want, resolver.attempts)
		}
	}
}

func TestAdvancePrevNeverGoesBelowStart(t *testing.T) {
	resolver := newResolverStub(1)
	store := &cursorStoreStub{cursor: 1}
	engine := newTestEngine(store, resolver)

	for i := 0; i < 3; i++ {
		delivery, err := engine.Advance(context.Background(), 1, store.cursor, Prev)
		if err != nil {
			t.Fatalf("advance prev %d: %v", i, err)
		}
		if delivery.Ref != 1 {
			t.Fatalf("expected redelivery of start ref, got %d", delivery.Ref)
		}
		if store.cursor < 1 {
			t.Fatalf("cursor fell below start ref: %d", store.cursor)
		}
	}
}

func TestAdvancePrevDoesNotSkip(t *testing.T) {
	resolver := newResolverStub()
	store := &cursorStoreStub{cursor: 10}
	engine := newTestEngine(store, resolver)

	_, err := engine.Advance(context.Background(), 1, 10, Prev)
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if len(resolver.attempts) != 1 {
		t.Fatalf("expected a single attempt for prev, got %d", len(resolver.attempts))
	}
	if store.cursor != 9 {
		t.Fatalf("expected cursor moved back one step to 9, got %d", store.cursor)
	}
}

func TestDeliverCurrentRedeliversCursorPosition(t *testing.T) {
	resolver := newResolverStub(7)
	store := &cursorStoreStub{cursor: 7}
	engine := newTestEngine(store, resolver)

	delivery, err := engine.DeliverCurrent(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("deliver current: %v", err)
	}
	if delivery.Ref != 7 {
		t.Fatalf("expected delivery of ref 7, got %d", delivery.Ref)
	}
	if store.cursor != 7 {
		t.Fatalf("expected cursor to stay at 7, got %d", store.cursor)
	}
}

func TestDeliverCurrentHealsThroughMissingItem(t *testing.T) {
	resolver := newResolverStub(9)
	store := &cursorStoreStub{cursor: 7}
	engine := newTestEngine(store, resolver)

	delivery, err := engine.DeliverCurrent(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("deliver current: %v", err)
	}
	if delivery.Ref != 9 {
		t.Fatalf("expected delivery of ref 9, got %d", delivery.Ref)
	}
	if store.cursor != 9 {
		t.Fatalf("expected cursor moved to 9, got %d", store.cursor)
	}
}
