// Package completion persists the per-user, per-practice, per-day completion counters.
//
// Mutations go through Store, whose methods are single predicate-guarded statements.
// Each statement re-checks its condition against the row it touches, so callers never
// need a separate read to stay correct under concurrent requests.
package completion

import (
	"context"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
)

// Store exposes the counter primitives available inside a transaction.
type Store interface {
	// TryIncrement adds delta to the row only when the result stays within maxPerDay.
	// It returns the updated row and true, or false when no row matched.
	TryIncrement(
		ctx context.Context, key domain.CompletionKey, delta, maxPerDay int, now time.Time,
	) (*domain.Completion, bool, error)

	// InsertIfAbsent creates the row with the given count. It returns false without
	// failing the transaction when the row already exists.
	InsertIfAbsent(ctx context.Context, key domain.CompletionKey, count int, now time.Time) (*domain.Completion, bool, error)

	// Get reads the row.
	Get(ctx context.Context, key domain.CompletionKey) (*domain.Completion, bool, error)

	// TryDecrement subtracts delta only when the current count is greater than delta.
	TryDecrement(ctx context.Context, key domain.CompletionKey, delta int, now time.Time) (*domain.Completion, bool, error)

	// DeleteIfAtMost removes the row only when its count is at most delta.
	DeleteIfAtMost(ctx context.Context, key domain.CompletionKey, delta int) (bool, error)
}

// DayRange bounds queries by day key, both ends inclusive. Empty ends are unbounded.
type DayRange struct {
	Start string
	End   string
}

// DailyPracticeSum is the summed count of one practice on one day.
type DailyPracticeSum struct {
	DayKey     string
	PracticeID string
	Count      int
}

// Repository defines completion persistence.
type Repository interface {
	// WithTx runs fn with a transaction-scoped Store. The transaction commits when fn
	// returns nil.
	WithTx(ctx context.Context, fn func(Store) error) error

	// ListForDay returns the user's rows for the day ordered by practice id.
	ListForDay(ctx context.Context, userID int64, dayKey string) ([]domain.Completion, error)

	// SumByPractice returns the summed count per practice id within the range.
	SumByPractice(ctx context.Context, userID int64, r DayRange) (map[string]int, error)

	// ActiveDays counts distinct day keys whose summed count is positive.
	ActiveDays(ctx context.Context, userID int64, r DayRange) (int, error)

	// DailyPracticeSums returns per-day, per-practice sums ordered by day key and practice id.
	DailyPracticeSums(ctx context.Context, userID int64, r DayRange) ([]DailyPracticeSum, error)
}
