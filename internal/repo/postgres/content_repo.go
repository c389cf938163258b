package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrContentItemNotFound = errors.New("content item not found")

type ContentRepo struct {
	pool *pgxpool.Pool
}

// ContentRecord is one entry of the append-only catalog. SequenceID is dense
// and assigned at insertion time; ChannelMessageID is the external reference
// used to deliver the item.
type ContentRecord struct {
	SequenceID       int64
	ChannelMessageID int64
	Description      string
	CreatedAt        time.Time
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

// Add appends an item to the catalog, assigning the next dense sequence id in
// a single statement.
func (r *ContentRepo) Add(ctx context.Context, channelMessageID int64, description string) (ContentRecord, error) {
	if r.pool == nil {
		return ContentRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if channelMessageID <= 0 {
		return ContentRecord{}, fmt.Errorf("invalid channel message id")
	}

	var item ContentRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO content_items (sequence_id, channel_message_id, description, created_at)
SELECT COALESCE(MAX(sequence_id) + 1, 0), $1, $2, NOW()
FROM content_items
RETURNING sequence_id, channel_message_id, description, created_at
`, channelMessageID, description).Scan(
		&item.SequenceID, &item.ChannelMessageID, &item.Description, &item.CreatedAt,
	)
	if err != nil {
		return ContentRecord{}, fmt.Errorf("add content item: %w", err)
	}

	return item, nil
}

func (r *ContentRepo) FindBySequence(ctx context.Context, sequenceID int64) (ContentRecord, error) {
	if r.pool == nil {
		return ContentRecord{}, fmt.Errorf("postgres pool is nil")
	}

	var item ContentRecord
	err := r.pool.QueryRow(ctx, `
SELECT sequence_id, channel_message_id, description, created_at
FROM content_items
WHERE sequence_id = $1
`, sequenceID).Scan(
		&item.SequenceID, &item.ChannelMessageID, &item.Description, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContentRecord{}, ErrContentItemNotFound
		}
		return ContentRecord{}, fmt.Errorf("find content item: %w", err)
	}

	return item, nil
}

func (r *ContentRepo) Total(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count content items: %w", err)
	}

	return total, nil
}
