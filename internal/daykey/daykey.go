// Package daykey maps instants to calendar day keys (YYYY-MM-DD) in a fixed
// timezone and computes the week and month boundaries used for statistics.
//
// Day keys are zero-padded, so plain string comparison orders them chronologically.
package daykey

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/mkrupp/practice-tracker/internal/domain"
)

// Layout is the day key format.
const Layout = "2006-01-02"

// Config holds the timezone that anchors day boundaries.
type Config struct {
	// Zone is an IANA timezone name
	Zone string `env:"ZONE" default:"Asia/Tbilisi"`
}

// Clock produces and manipulates day keys in a single timezone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock for the configured timezone.
func NewClock(cfg Config) (*Clock, error) {
	loc, err := time.LoadLocation(cfg.Zone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", cfg.Zone, err)
	}

	return NewClockAt(loc, time.Now), nil
}

// NewClockAt creates a Clock with an explicit location and time source.
func NewClockAt(loc *time.Location, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}

	return &Clock{loc: loc, now: now}
}

// Location returns the timezone of the clock.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Instant returns the current instant from the clock's time source.
func (c *Clock) Instant() time.Time {
	return c.now()
}

// Now returns today's day key.
func (c *Clock) Now() string {
	return c.FromTime(c.now())
}

// FromTime returns the day key of the instant t in the clock's timezone.
func (c *Clock) FromTime(t time.Time) string {
	return t.In(c.loc).Format(Layout)
}

// Parse validates key and returns the start of that day in the clock's timezone.
// Malformed and impossible dates are rejected rather than normalized.
func (c *Clock) Parse(key string) (time.Time, error) {
	if len(key) != len(Layout) {
		return time.Time{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", domain.ErrInvalidDayKey, key)
	}

	t, err := time.ParseInLocation(Layout, key, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %w", domain.ErrInvalidDayKey, key, err)
	}

	if t.Format(Layout) != key {
		return time.Time{}, fmt.Errorf("%w %q: not a calendar date", domain.ErrInvalidDayKey, key)
	}

	return startOfDay(t.Year(), t.Month(), t.Day(), c.loc), nil
}

// WeekStart returns the key of the Monday on or before key.
func (c *Clock) WeekStart(key string) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}

	// time.Sunday == 0; shift so that Monday == 0
	offset := (int(t.Weekday()) + 6) % 7

	return startOfDay(t.Year(), t.Month(), t.Day()-offset, c.loc).Format(Layout), nil
}

// MonthStart returns the key of the first day of the month containing key.
func (c *Clock) MonthStart(key string) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}

	return startOfDay(t.Year(), t.Month(), 1, c.loc).Format(Layout), nil
}

// AddDays returns the key n calendar days after key (n may be negative).
func (c *Clock) AddDays(key string, n int) (string, error) {
	t, err := c.Parse(key)
	if err != nil {
		return "", err
	}

	return startOfDay(t.Year(), t.Month(), t.Day()+n, c.loc).Format(Layout), nil
}

func startOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
