// Package statssvc aggregates completion counters into per-practice totals,
// active day counts and a daily points series.
package statssvc

import (
	"context"
	"errors"
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
const InstrumentationName = "github.com/mkrupp/practice-tracker/internal/svc/statssvc"

// StatsConfig contains the stats query defaults and limits.
type StatsConfig struct {
	// DefaultRange is used when a query names no range
	DefaultRange string `env:"DEFAULT_RANGE" default:"week"`
	// AllWindowDays is the default daily series window for the "all" range
	AllWindowDays int `env:"ALL_WINDOW_DAYS" default:"90"`
	// MinDays and MaxDays bound the requested window
	MinDays int `env:"MIN_DAYS" default:"7"`
	MaxDays int `env:"MAX_DAYS" default:"365"`
}

// Query selects the statistics to compute. Zero values pick the defaults:
// the configured range, today and the configured window.
type Query struct {
	UserID     int64
	Range      Range
	AsOfDayKey string
	Days       int
}

// Totals are the overall sums of a range.
type Totals struct {
	TotalCount  int `json:"totalCount"`
	TotalPoints int `json:"totalPoints"`
	ActiveDays  int `json:"activeDays"`
}

// Stats is the result of StatsService.GetStats.
type Stats struct {
	Range       Range           `json:"range"`
	AsOfDayKey  string          `json:"asOfDayKey"`
	Bounds      Bounds          `json:"bounds"`
	Totals      Totals          `json:"totals"`
	PerPractice []PracticeStats `json:"perPractice"`
	DailySeries []DailyPoint    `json:"dailySeries"`
	ChartWindow *ChartWindow    `json:"chartWindow"`
}

// StatsService computes statistics from the completion store.
type StatsService struct {
	Config         StatsConfig
	CompletionRepo completion.Repository
	Catalog        *catalog.Catalog
	Clock          *daykey.Clock
	Log            logging.Logger
	Tracer         trace.Tracer

	requests metric.Int64Counter
}

// NewStatsService creates a StatsService counting requests by range on meter.
// A nil meter uses the global meter provider.
func NewStatsService(
	cfg StatsConfig,
	completions completion.Repository,
	cat *catalog.Catalog,
	clock *daykey.Clock,
	meter metric.Meter,
) (*StatsService, error) {
	if _, err := ParseRange(cfg.DefaultRange); err != nil {
		return nil, fmt.Errorf("default range: %w", err)
	}

	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	requests, err := meter.Int64Counter("stats.requests",
		metric.WithDescription("Stats queries by range"))
	if err != nil {
		return nil, fmt.Errorf("requests counter: %w", err)
	}

	return &StatsService{
		Config:         cfg,
		CompletionRepo: completions,
		Catalog:        cat,
		Clock:          clock,
		Log:            logging.GetLogger("svc.statssvc"),
		Tracer:         otel.Tracer(InstrumentationName),
		requests:       requests,
	}, nil
}

// GetStats computes totals over the query's range and the daily series. For
// RangeAll the series covers only the trailing window of q.Days days.
func (s *StatsService) GetStats(ctx context.Context, q Query) (stats *Stats, err error) {
	if q.Range == "" {
		q.Range = Range(s.Config.DefaultRange)
	}

	ctx, span := s.Tracer.Start(ctx, "statssvc.GetStats", trace.WithAttributes(
		attribute.String("range", string(q.Range)),
	))
	defer span.End()

	log := s.Log

	defer func() {
		switch {
		case errors.Is(err, domain.ErrInvalidDayKey):
			log.DebugContext(ctx, "invalid as-of day key", "error", err)
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, "get stats failed")
			log.ErrorContext(ctx, "get stats failed", "error", err)
		default:
			s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("range", string(stats.Range))))
			log.DebugContext(ctx, "stats computed", "range", stats.Range, "as_of", stats.AsOfDayKey)
		}
	}()

	if q.AsOfDayKey == "" {
		q.AsOfDayKey = s.Clock.Now()
	}

	if q.Days == 0 {
		q.Days = s.Config.AllWindowDays
	}

	if _, err := s.Clock.Parse(q.AsOfDayKey); err != nil {
		return nil, fmt.Errorf("as of: %w", err)
	}

	bounds, err := TotalsBounds(s.Clock, q.Range, q.AsOfDayKey)
	if err != nil {
		return nil, fmt.Errorf("totals bounds: %w", err)
	}

	totalsRange := bounds.DayRange()
	chartRange := totalsRange

	var window *ChartWindow

	if q.Range == RangeAll {
		w, err := ChartWindowForAll(s.Clock, q.AsOfDayKey, q.Days)
		if err != nil {
			return nil, fmt.Errorf("chart window: %w", err)
		}

		window = &w
		chartRange = completion.DayRange{Start: w.StartDayKey, End: w.EndDayKey}
	}

	counts, err := s.CompletionRepo.SumByPractice(ctx, q.UserID, totalsRange)
	if err != nil {
		return nil, fmt.Errorf("sum by practice: %w", err)
	}

	perPractice := BuildPerPractice(s.Catalog, counts)

	var totals Totals

	for _, p := range perPractice {
		totals.TotalCount += p.Count
		totals.TotalPoints += p.Points
	}

	totals.ActiveDays, err = s.CompletionRepo.ActiveDays(ctx, q.UserID, totalsRange)
	if err != nil {
		return nil, fmt.Errorf("active days: %w", err)
	}

	daily, err := s.CompletionRepo.DailyPracticeSums(ctx, q.UserID, chartRange)
	if err != nil {
		return nil, fmt.Errorf("daily sums: %w", err)
	}

	return &Stats{
		Range:       q.Range,
		AsOfDayKey:  q.AsOfDayKey,
		Bounds:      bounds,
		Totals:      totals,
		PerPractice: perPractice,
		DailySeries: BuildDailySeries(s.Catalog, daily),
		ChartWindow: window,
	}, nil
}
