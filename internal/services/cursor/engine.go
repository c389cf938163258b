package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoContent is the terminal outcome: both the initial pass and the
// post-wraparound pass exhausted their skip budget without resolving a
// single reference.
var ErrNoContent = errors.New("no content available")

type Direction int

const (
	Next Direction = iota
	Prev
)

// Resolver attempts to deliver one content reference to the user and returns
// an opaque handle for the delivered instance. Any error counts as
// "unavailable" for the traversal; transient transport failures are absorbed
// by the same skip budget as missing references.
type Resolver interface {
	Resolve(ctx context.Context, userID, ref int64) (int, error)
}

// Store persists cursor movement. The cursor is written on every failed skip
// so a crash mid-loop resumes from where the loop got to, not from the
// original position.
type Store interface {
	UpdateCursor(ctx context.Context, userID, cursor int64) error
	SetLastDelivered(ctx context.Context, userID int64, handle int) error
}

type Config struct {
	// StartRef is the first content reference; the cursor never moves
	// below it.
	StartRef int64
	// SkipBudget caps the retries after a failed resolve within one pass.
	SkipBudget int
}

type Delivery struct {
	Ref    int64
	Handle int
	// Looped is set when the traversal wrapped to StartRef before landing,
	// so the caller can tell the user the playlist restarted.
	Looped bool
}

type Engine struct {
	store    Store
	resolver Resolver
	cfg      Config
	logger   *zap.Logger
}

func NewEngine(store Store, resolver Resolver, cfg Config, logger *zap.Logger) *Engine {
	if cfg.StartRef <= 0 {
		cfg.StartRef = 1
	}
	if cfg.SkipBudget <= 0 {
		cfg.SkipBudget = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Advance moves the user one step through the content sequence and delivers
// the landed-on item. Forward movement self-heals through gaps of up to
// SkipBudget missing references and wraps around to StartRef once when the
// gap looks like the end of the catalog. Backward movement never skips.
func (e *Engine) Advance(ctx context.Context, userID, current int64, dir Direction) (Delivery, error) {
	if e.store == nil || e.resolver == nil {
		return Delivery{}, fmt.Errorf("cursor engine is not configured")
	}
	if userID <= 0 {
		return Delivery{}, fmt.Errorf("invalid user id")
	}

	if dir == Prev {
		return e.stepBack(ctx, userID, current)
	}
	return e.stepForward(ctx, userID, current)
}

// DeliverCurrent delivers the item the cursor already points at, with the
// same forward self-healing as Advance when that item is gone. Used on
// session start, where the user resumes rather than moves.
func (e *Engine) DeliverCurrent(ctx context.Context, userID, current int64) (Delivery, error) {
	if e.store == nil || e.resolver == nil {
		return Delivery{}, fmt.Errorf("cursor engine is not configured")
	}
	if userID <= 0 {
		return Delivery{}, fmt.Errorf("invalid user id")
	}

	return e.stepForward(ctx, userID, current-1)
}

func (e *Engine) stepForward(ctx context.Context, userID, current int64) (Delivery, error) {
	candidate := current + 1
	if candidate < e.cfg.StartRef {
		candidate = e.cfg.StartRef
	}

	skips := 0
	looped := false
	started := time.Now()

	for {
		handle, err := e.resolver.Resolve(ctx, userID, candidate)
		if err == nil {
			if err := e.commit(ctx, userID, candidate, handle); err != nil {
				return Delivery{}, err
			}
			return Delivery{Ref: candidate, Handle: handle, Looped: looped}, nil
		}

		e.logger.Debug("content reference unavailable",
			zap.Int64("user_id", userID),
			zap.Int64("ref", candidate),
			zap.Int("skips", skips),
			zap.Bool("looped", looped),
			zap.Error(err),
		)

		if skips < e.cfg.SkipBudget {
			skips++
			candidate++
			if err := e.store.UpdateCursor(ctx, userID, candidate); err != nil {
				return Delivery{}, err
			}
			continue
		}

		if !looped {
			// The whole budget failed on the first pass: treat it as
			// end of catalog and grant one more pass from the start.
			looped = true
			skips = 0
			candidate = e.cfg.StartRef
			if err := e.store.UpdateCursor(ctx, userID, candidate); err != nil {
				return Delivery{}, err
			}
			continue
		}

		e.logger.Warn("no resolvable content after wraparound",
			zap.Int64("user_id", userID),
			zap.Int64("last_ref", candidate),
			zap.Duration("elapsed", time.Since(started)),
		)
		return Delivery{}, ErrNoContent
	}
}

func (e *Engine) stepBack(ctx context.Context, userID, current int64) (Delivery, error) {
	candidate := current - 1
	if candidate < e.cfg.StartRef {
		candidate = e.cfg.StartRef
	}

	handle, err := e.resolver.Resolve(ctx, userID, candidate)
	if err != nil {
		// Backward movement past a hole is rare and not optimized: the
		// cursor still moves, and the next forward press heals the gap.
		if err := e.store.UpdateCursor(ctx, userID, candidate); err != nil {
			return Delivery{}, err
		}
		return Delivery{}, ErrNoContent
	}

	if err := e.commit(ctx, userID, candidate, handle); err != nil {
		return Delivery{}, err
	}
	return Delivery{Ref: candidate, Handle: handle}, nil
}

func (e *Engine) commit(ctx context.Context, userID, ref int64, handle int) error {
	if err := e.store.UpdateCursor(ctx, userID, ref); err != nil {
		return err
	}
	if err := e.store.SetLastDelivered(ctx, userID, handle); err != nil {
		return err
	}
	return nil
}
