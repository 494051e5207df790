package trackersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
)

// UndoOutcome discriminates the result of an undo.
type UndoOutcome string

const (
	UndoOk      UndoOutcome = "ok"
	UndoDeleted UndoOutcome = "deleted"
	UndoNoop    UndoOutcome = "noop"
)

// UndoParams are the inputs of UndoCompletion. Delta must be at least 1.
type UndoParams struct {
	Key   domain.CompletionKey
	Delta int
	Now   time.Time
}

// UndoResult carries the remaining row when Outcome is UndoOk.
type UndoResult struct {
	Outcome    UndoOutcome
	Completion *domain.Completion
}

// UndoCompletion decreases the counter by Delta, deleting the row when the
// count would drop to zero or below. A missing row is a no-op.
func UndoCompletion(ctx context.Context, store completion.Store, p UndoParams) (UndoResult, error) {
	if p.Delta < 1 {
		return UndoResult{}, fmt.Errorf("%w: %d", ErrInvalidDelta, p.Delta)
	}

	c, ok, err := store.TryDecrement(ctx, p.Key, p.Delta, p.Now)
	if err != nil {
		return UndoResult{}, fmt.Errorf("try decrement: %w", err)
	} else if ok {
		return UndoResult{Outcome: UndoOk, Completion: c}, nil
	}

	deleted, err := store.DeleteIfAtMost(ctx, p.Key, p.Delta)
	if err != nil {
		return UndoResult{}, fmt.Errorf("delete: %w", err)
	} else if deleted {
		return UndoResult{Outcome: UndoDeleted}, nil
	}

	return UndoResult{Outcome: UndoNoop}, nil
}
