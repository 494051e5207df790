// Package trackersvc records practice completions: the capped "done" increment,
// the decrement-or-delete "undo" and the per-day completion listing.
package trackersvc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mkrupp/practice-tracker/internal/catalog"
	"github.com/mkrupp/practice-tracker/internal/daykey"
	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
)

// InstrumentationName names the tracer and meter of this package.
const InstrumentationName = "github.com/mkrupp/practice-tracker/internal/svc/trackersvc"

// DefaultDelta is applied when a request omits delta.
const DefaultDelta = 1

// DoneResult is the outcome of Service.Done.
type DoneResult struct {
	ApplyResult

	DayKey    string
	Practice  domain.Practice
	MaxPerDay int
}

// UndoServiceResult is the outcome of Service.Undo. Outcome is empty when the
// practice is unknown.
type UndoServiceResult struct {
	UndoResult

	DayKey          string
	Practice        domain.Practice
	UnknownPractice bool
}

// DayCompletions lists a user's known-practice completion rows for one day.
type DayCompletions struct {
	DayKey      string
	Completions []domain.Completion
}

// TrackerService applies and lists completions for authenticated users.
type TrackerService struct {
	CompletionRepo completion.Repository
	Catalog        *catalog.Catalog
	Clock          *daykey.Clock
	Log            logging.Logger

	Tracer       trace.Tracer
	doneOutcomes metric.Int64Counter
	undoOutcomes metric.Int64Counter
}

// NewTrackerService creates a TrackerService recording outcome counters on meter.
// Spans go to Tracer, which defaults to the global tracer provider.
func NewTrackerService(
	completions completion.Repository,
	cat *catalog.Catalog,
	clock *daykey.Clock,
	meter metric.Meter,
) (*TrackerService, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	doneOutcomes, err := meter.Int64Counter("tracker.done.outcomes",
		metric.WithDescription("Done requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("done counter: %w", err)
	}

	undoOutcomes, err := meter.Int64Counter("tracker.undo.outcomes",
		metric.WithDescription("Undo requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("undo counter: %w", err)
	}

	return &TrackerService{
		CompletionRepo: completions,
		Catalog:        cat,
		Clock:          clock,
		Log:            logging.GetLogger("svc.trackersvc"),
		Tracer:         otel.Tracer(InstrumentationName),
		doneOutcomes:   doneOutcomes,
		undoOutcomes:   undoOutcomes,
	}, nil
}

// Practices returns the catalog in its declared order.
func (s *TrackerService) Practices() []domain.Practice {
	return s.Catalog.All()
}

// Done records delta completions of practiceID for today. A zero delta means
// DefaultDelta; a negative one is rejected with ErrInvalidDelta.
// Unknown practices and a reached cap are reported through DoneResult.Outcome.
func (s *TrackerService) Done(ctx context.Context, userID int64, practiceID string, delta int) (res DoneResult, err error) {
	if delta == 0 {
		delta = DefaultDelta
	} else if delta < 0 {
		return DoneResult{}, fmt.Errorf("%w: %d", ErrInvalidDelta, delta)
	}

	ctx, span := s.Tracer.Start(ctx, "trackersvc.Done", trace.WithAttributes(
		attribute.String("practice.id", practiceID),
		attribute.Int("delta", delta),
	))
	defer span.End()

	log := s.Log.With(logging.Group("completion", "practice_id", practiceID, "delta", delta))

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "done failed")
			log.ErrorContext(ctx, "done failed", "error", err)

			return
		}

		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		s.doneOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(res.Outcome))))
		log.DebugContext(ctx, "done", "outcome", res.Outcome, "day_key", res.DayKey, "count", res.Count)
	}()

	now := s.Clock.Instant()
	res.DayKey = s.Clock.FromTime(now)

	practice, ok := s.Catalog.Lookup(practiceID)
	if !ok {
		res.Outcome = DoneUnknownPractice

		return res, nil
	}

	res.Practice = practice
	res.MaxPerDay = practice.MaxPerDay

	params := ApplyParams{
		Key:       domain.CompletionKey{UserID: userID, PracticeID: practiceID, DayKey: res.DayKey},
		Delta:     delta,
		MaxPerDay: practice.MaxPerDay,
		Now:       now,
	}

	err = s.CompletionRepo.WithTx(ctx, func(store completion.Store) (err error) {
		res.ApplyResult, err = ApplyCompletion(ctx, store, params)

		return err
	})
	if err != nil {
		return DoneResult{}, fmt.Errorf("apply completion: %w", err)
	}

	return res, nil
}

// Undo removes delta completions of practiceID for today. No cap applies.
// Delta follows the same rules as in Done.
func (s *TrackerService) Undo(
	ctx context.Context, userID int64, practiceID string, delta int,
) (res UndoServiceResult, err error) {
	if delta == 0 {
		delta = DefaultDelta
	} else if delta < 0 {
		return UndoServiceResult{}, fmt.Errorf("%w: %d", ErrInvalidDelta, delta)
	}

	ctx, span := s.Tracer.Start(ctx, "trackersvc.Undo", trace.WithAttributes(
		attribute.String("practice.id", practiceID),
		attribute.Int("delta", delta),
	))
	defer span.End()

	log := s.Log.With(logging.Group("completion", "practice_id", practiceID, "delta", delta))

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "undo failed")
			log.ErrorContext(ctx, "undo failed", "error", err)

			return
		}

		outcome := string(res.Outcome)
		if res.UnknownPractice {
			outcome = string(DoneUnknownPractice)
		}

		span.SetAttributes(attribute.String("outcome", outcome))
		s.undoOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		log.DebugContext(ctx, "undo", "outcome", outcome, "day_key", res.DayKey)
	}()

	now := s.Clock.Instant()
	res.DayKey = s.Clock.FromTime(now)

	practice, ok := s.Catalog.Lookup(practiceID)
	if !ok {
		res.UnknownPractice = true

		return res, nil
	}

	res.Practice = practice

	params := UndoParams{
		Key:   domain.CompletionKey{UserID: userID, PracticeID: practiceID, DayKey: res.DayKey},
		Delta: delta,
		Now:   now,
	}

	err = s.CompletionRepo.WithTx(ctx, func(store completion.Store) (err error) {
		res.UndoResult, err = UndoCompletion(ctx, store, params)

		return err
	})
	if err != nil {
		return UndoServiceResult{}, fmt.Errorf("undo completion: %w", err)
	}

	return res, nil
}

// Completions lists the user's rows for dayKey, today when empty. Rows of
// practices no longer in the catalog are dropped.
func (s *TrackerService) Completions(ctx context.Context, userID int64, dayKey string) (DayCompletions, error) {
	if dayKey == "" {
		dayKey = s.Clock.Now()
	} else if _, err := s.Clock.Parse(dayKey); err != nil {
		return DayCompletions{}, fmt.Errorf("parse day key: %w", err)
	}

	rows, err := s.CompletionRepo.ListForDay(ctx, userID, dayKey)
	if err != nil {
		return DayCompletions{}, fmt.Errorf("list completions: %w", err)
	}

	known := make([]domain.Completion, 0, len(rows))

	for _, row := range rows {
		if _, ok := s.Catalog.Lookup(row.PracticeID); ok {
			known = append(known, row)
		}
	}

	return DayCompletions{DayKey: dayKey, Completions: known}, nil
}
