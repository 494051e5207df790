package statssvc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mkrupp/practice-tracker/internal/catalog"
	"github.com/mkrupp/practice-tracker/internal/daykey"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
)

// ErrInvalidRange is returned for range names other than today, week, month and all.
var ErrInvalidRange = errors.New("invalid range")

// Range selects the period statistics are computed over.
type Range string

const (
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeAll   Range = "all"
)

// ParseRange validates a range name.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeToday, RangeWeek, RangeMonth, RangeAll:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
}

// Bounds are the inclusive day keys of a range. Both are nil for RangeAll.
type Bounds struct {
	StartDayKey *string `json:"startDayKey"`
	EndDayKey   *string `json:"endDayKey"`
}

// DayRange converts the bounds into a repository filter.
func (b Bounds) DayRange() completion.DayRange {
	var r completion.DayRange

	if b.StartDayKey != nil {
		r.Start = *b.StartDayKey
	}

	if b.EndDayKey != nil {
		r.End = *b.EndDayKey
	}

	return r
}

func bounded(start, end string) Bounds {
	return Bounds{StartDayKey: &start, EndDayKey: &end}
}

// TotalsBounds maps a range to the day keys it covers, ending at asOf.
func TotalsBounds(clock *daykey.Clock, r Range, asOf string) (Bounds, error) {
	switch r {
	case RangeToday:
		if _, err := clock.Parse(asOf); err != nil {
			return Bounds{}, err //nolint:wrapcheck
		}

		return bounded(asOf, asOf), nil
	case RangeWeek:
		start, err := clock.WeekStart(asOf)
		if err != nil {
			return Bounds{}, err //nolint:wrapcheck
		}

		return bounded(start, asOf), nil
	case RangeMonth:
		start, err := clock.MonthStart(asOf)
		if err != nil {
			return Bounds{}, err //nolint:wrapcheck
		}

		return bounded(start, asOf), nil
	case RangeAll:
		return Bounds{}, nil
	default:
		return Bounds{}, fmt.Errorf("%w: %q", ErrInvalidRange, r)
	}
}

// ChartWindow is the trailing window of the daily series for RangeAll.
type ChartWindow struct {
	Days        int    `json:"days"`
	StartDayKey string `json:"startDayKey"`
	EndDayKey   string `json:"endDayKey"`
}

// ChartWindowForAll returns the days-long window ending at asOf.
func ChartWindowForAll(clock *daykey.Clock, asOf string, days int) (ChartWindow, error) {
	start, err := clock.AddDays(asOf, -(days - 1))
	if err != nil {
		return ChartWindow{}, err //nolint:wrapcheck
	}

	return ChartWindow{Days: days, StartDayKey: start, EndDayKey: asOf}, nil
}

// PracticeStats are the totals of one practice.
type PracticeStats struct {
	PracticeID string `json:"practiceId"`
	Label      string `json:"label"`
	MaxPerDay  int    `json:"maxPerDay"`
	PointsPer  int    `json:"pointsPer"`
	Count      int    `json:"count"`
	Points     int    `json:"points"`
}

// BuildPerPractice lists every catalog practice in catalog order, including
// practices without activity.
func BuildPerPractice(cat *catalog.Catalog, countByPractice map[string]int) []PracticeStats {
	practices := cat.All()
	out := make([]PracticeStats, 0, len(practices))

	for _, p := range practices {
		count := countByPractice[p.Key]

		out = append(out, PracticeStats{
			PracticeID: p.Key,
			Label:      p.Label,
			MaxPerDay:  p.MaxPerDay,
			PointsPer:  p.Points,
			Count:      count,
			Points:     count * p.Points,
		})
	}

	return out
}

// DailyPoint is the total of one day across known practices.
type DailyPoint struct {
	DayKey      string `json:"dayKey"`
	TotalCount  int    `json:"totalCount"`
	TotalPoints int    `json:"totalPoints"`
}

// BuildDailySeries folds per-practice daily sums into one point per day, sorted
// by day key. Rows of practices missing from the catalog are skipped.
func BuildDailySeries(cat *catalog.Catalog, rows []completion.DailyPracticeSum) []DailyPoint {
	byDay := make(map[string]*DailyPoint)

	for _, row := range rows {
		p, ok := cat.Lookup(row.PracticeID)
		if !ok {
			continue
		}

		point, ok := byDay[row.DayKey]
		if !ok {
			point = &DailyPoint{DayKey: row.DayKey}
			byDay[row.DayKey] = point
		}

		point.TotalCount += row.Count
		point.TotalPoints += row.Count * p.Points
	}

	series := make([]DailyPoint, 0, len(byDay))
	for _, point := range byDay {
		series = append(series, *point)
	}

	sort.Slice(series, func(i, j int) bool { return series[i].DayKey < series[j].DayKey })

	return series
}
