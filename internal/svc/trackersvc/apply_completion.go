package trackersvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
)

// ErrInvalidDelta is returned for a delta below 1.
var ErrInvalidDelta = errors.New("delta must be at least 1")

// DoneOutcome discriminates the result of a "done" request.
type DoneOutcome string

const (
	DoneApplied         DoneOutcome = "applied"
	DoneMaxReached      DoneOutcome = "max_reached"
	DoneUnknownPractice DoneOutcome = "unknown_practice"
)

// ApplyParams are the inputs of ApplyCompletion. Delta must be at least 1.
type ApplyParams struct {
	Key       domain.CompletionKey
	Delta     int
	MaxPerDay int
	Now       time.Time
}

// ApplyResult is either Applied with the updated row, or MaxReached with the
// count observed when the cap blocked the increment.
type ApplyResult struct {
	Outcome    DoneOutcome
	Completion *domain.Completion
	Count      int
}

func applied(c *domain.Completion) ApplyResult {
	return ApplyResult{Outcome: DoneApplied, Completion: c, Count: c.Count}
}

func maxReached(count int) ApplyResult {
	return ApplyResult{Outcome: DoneMaxReached, Count: count}
}

// ApplyCompletion increases the counter by Delta when the result stays within
// MaxPerDay. It must run inside a transaction; every step is a single guarded
// statement so concurrent callers on the same key cannot overshoot the cap.
func ApplyCompletion(ctx context.Context, store completion.Store, p ApplyParams) (ApplyResult, error) {
	if p.Delta < 1 {
		return ApplyResult{}, fmt.Errorf("%w: %d", ErrInvalidDelta, p.Delta)
	}

	if p.Delta > p.MaxPerDay {
		return maxReached(0), nil
	}

	c, ok, err := store.TryIncrement(ctx, p.Key, p.Delta, p.MaxPerDay, p.Now)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("try increment: %w", err)
	} else if ok {
		return applied(c), nil
	}

	c, ok, err = store.InsertIfAbsent(ctx, p.Key, p.Delta, p.Now)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("insert if absent: %w", err)
	} else if ok {
		return applied(c), nil
	}

	// lost the insert race; the row exists now
	c, ok, err = store.TryIncrement(ctx, p.Key, p.Delta, p.MaxPerDay, p.Now)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("retry increment: %w", err)
	} else if ok {
		return applied(c), nil
	}

	c, ok, err = store.Get(ctx, p.Key)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read count: %w", err)
	} else if !ok {
		return maxReached(0), nil
	}

	return maxReached(c.Count), nil
}
