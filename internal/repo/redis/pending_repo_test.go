package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func newTestRepo(t *testing.T) (*PendingRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewPendingRepo(client), mr
}

func TestPendingRoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	record := PendingRecord{PlanName: "1-Month", Price: 100, GrantDays: 30}
	if err := repo.Set(ctx, 42, record, time.Minute); err != nil {
		t.Fatalf("set pending payment: %v", err)
	}

	got, err := repo.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get pending payment: %v", err)
	}
	if got != record {
		t.Fatalf("expected %+v, got %+v", record, got)
	}

	if err := repo.Clear(ctx, 42); err != nil {
		t.Fatalf("clear pending payment: %v", err)
	}
	if _, err := repo.Get(ctx, 42); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected ErrPendingNotFound after clear, got %v", err)
	}
}

func TestPendingExpiresWithTTL(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	record := PendingRecord{PlanName: "Demo", GrantMinutes: 1}
	if err := repo.Set(ctx, 7, record, 30*time.Second); err != nil {
		t.Fatalf("set pending payment: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if _, err := repo.Get(ctx, 7); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected ErrPendingNotFound after ttl, got %v", err)
	}
}

func TestPendingRejectsInvalidPayload(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, 0, PendingRecord{PlanName: "1-Day"}, time.Minute); err == nil {
		t.Fatalf("expected error for invalid user id")
	}
	if err := repo.Set(ctx, 5, PendingRecord{}, time.Minute); err == nil {
		t.Fatalf("expected error for empty plan name")
	}
	if err := repo.Set(ctx, 5, PendingRecord{PlanName: "1-Day"}, 0); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
