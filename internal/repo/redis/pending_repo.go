package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pendingPrefix = "pending_payment:"

var ErrPendingNotFound = errors.New("pending payment not found")

// PendingRepo holds the short-lived "plan selected, awaiting screenshot"
// state per user. Entries expire on their own; a restart losing them is
// acceptable, the user simply re-selects a plan.
type PendingRepo struct {
	client *goredis.Client
}

type PendingRecord struct {
	PlanName     string
	Price        int
	GrantDays    int
	GrantMinutes int
}

func NewPendingRepo(client *goredis.Client) *PendingRepo {
	return &PendingRepo{client: client}
}

func (r *PendingRepo) Set(ctx context.Context, userID int64, record PendingRecord, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 || strings.TrimSpace(record.PlanName) == "" || ttl <= 0 {
		return fmt.Errorf("invalid pending payment payload")
	}

	fields := map[string]interface{}{
		"plan_name":     record.PlanName,
		"price":         record.Price,
		"grant_days":    record.GrantDays,
		"grant_minutes": record.GrantMinutes,
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, pendingKey(userID), fields)
	pipe.Expire(ctx, pendingKey(userID), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set pending payment: %w", err)
	}

	return nil
}

func (r *PendingRepo) Get(ctx context.Context, userID int64) (PendingRecord, error) {
	if r.client == nil {
		return PendingRecord{}, fmt.Errorf("redis client is nil")
	}

	values, err := r.client.HGetAll(ctx, pendingKey(userID)).Result()
	if err != nil {
		return PendingRecord{}, fmt.Errorf("get pending payment: %w", err)
	}
	if len(values) == 0 {
		return PendingRecord{}, ErrPendingNotFound
	}

	return parsePendingRecord(values)
}

func (r *PendingRepo) Clear(ctx context.Context, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.client.Del(ctx, pendingKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear pending payment: %w", err)
	}

	return nil
}

func parsePendingRecord(values map[string]string) (PendingRecord, error) {
	record := PendingRecord{PlanName: values["plan_name"]}
	if strings.TrimSpace(record.PlanName) == "" {
		return PendingRecord{}, fmt.Errorf("pending payment hash is missing plan_name")
	}

	var err error
	if record.Price, err = parseIntField(values, "price"); err != nil {
		return PendingRecord{}, err
	}
	if record.GrantDays, err = parseIntField(values, "grant_days"); err != nil {
		return PendingRecord{}, err
	}
	if record.GrantMinutes, err = parseIntField(values, "grant_minutes"); err != nil {
		return PendingRecord{}, err
	}

	return record, nil
}

func parseIntField(values map[string]string, field string) (int, error) {
	raw, ok := values[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse pending payment field %s: %w", field, err)
	}
	return n, nil
}

func pendingKey(userID int64) string {
	return pendingPrefix + strconv.FormatInt(userID, 10)
}
