package domain

import (
	"errors"
	"time"
)

// ErrInvalidDayKey is returned for malformed or impossible YYYY-MM-DD strings.
var ErrInvalidDayKey = errors.New("invalid day key")

// CompletionKey identifies a single counter row.
type CompletionKey struct {
	UserID     int64
	PracticeID string
	DayKey     string
}

// Completion is the per-user, per-practice, per-day counter.
// A persisted row always has Count >= 1.
type Completion struct {
	ID              int64
	UserID          int64
	PracticeID      string
	DayKey          string
	Count           int
	LastCompletedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CompletionResponse is the public representation of a completion row.
type CompletionResponse struct {
	PracticeID      string     `json:"practiceId"`
	DayKey          string     `json:"dayKey"`
	Count           int        `json:"count"`
	LastCompletedAt *time.Time `json:"lastCompletedAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Response returns the public view of the completion.
func (c Completion) Response() CompletionResponse {
	var last *time.Time
	if c.LastCompletedAt != nil {
		t := c.LastCompletedAt.UTC()
		last = &t
	}

	return CompletionResponse{
		PracticeID:      c.PracticeID,
		DayKey:          c.DayKey,
		Count:           c.Count,
		LastCompletedAt: last,
		UpdatedAt:       c.UpdatedAt.UTC(),
	}
}
