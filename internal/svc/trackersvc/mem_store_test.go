package trackersvc_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/repo/completion"
)

// memStore is an in-memory completion.Store. Statements are applied one at a time,
// matching the predicate semantics of the SQL store.
type memStore struct {
	rows   map[domain.CompletionKey]*domain.Completion
	nextID int64
	writes int
}

var _ completion.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{rows: make(map[domain.CompletionKey]*domain.Completion)}
}

func (m *memStore) snapshot(c *domain.Completion) *domain.Completion {
	cp := *c

	return &cp
}

func (m *memStore) TryIncrement(
	_ context.Context, key domain.CompletionKey, delta, maxPerDay int, now time.Time,
) (*domain.Completion, bool, error) {
	row, ok := m.rows[key]
	if !ok || row.Count > maxPerDay-delta {
		return nil, false, nil
	}

	row.Count += delta
	row.LastCompletedAt = &now
	row.UpdatedAt = now
	m.writes++

	return m.snapshot(row), true, nil
}

func (m *memStore) InsertIfAbsent(
	_ context.Context, key domain.CompletionKey, count int, now time.Time,
) (*domain.Completion, bool, error) {
	if _, ok := m.rows[key]; ok {
		return nil, false, nil
	}

	m.nextID++
	m.rows[key] = &domain.Completion{
		ID:              m.nextID,
		UserID:          key.UserID,
		PracticeID:      key.PracticeID,
		DayKey:          key.DayKey,
		Count:           count,
		LastCompletedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.writes++

	return m.snapshot(m.rows[key]), true, nil
}

func (m *memStore) Get(_ context.Context, key domain.CompletionKey) (*domain.Completion, bool, error) {
	row, ok := m.rows[key]
	if !ok {
		return nil, false, nil
	}

	return m.snapshot(row), true, nil
}

func (m *memStore) TryDecrement(
	_ context.Context, key domain.CompletionKey, delta int, now time.Time,
) (*domain.Completion, bool, error) {
	row, ok := m.rows[key]
	if !ok || row.Count <= delta {
		return nil, false, nil
	}

	row.Count -= delta
	row.UpdatedAt = now
	m.writes++

	return m.snapshot(row), true, nil
}

func (m *memStore) DeleteIfAtMost(_ context.Context, key domain.CompletionKey, delta int) (bool, error) {
	row, ok := m.rows[key]
	if !ok || row.Count > delta {
		return false, nil
	}

	delete(m.rows, key)
	m.writes++

	return true, nil
}

// memRepository serializes transactions over a memStore.
type memRepository struct {
	mu    sync.Mutex
	store *memStore
}

var _ completion.Repository = (*memRepository)(nil)

func newMemRepository() *memRepository {
	return &memRepository{store: newMemStore()}
}

func (r *memRepository) WithTx(_ context.Context, fn func(completion.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return fn(r.store)
}

func (r *memRepository) ListForDay(_ context.Context, userID int64, dayKey string) ([]domain.Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := []domain.Completion{}

	for k, row := range r.store.rows {
		if k.UserID == userID && k.DayKey == dayKey {
			rows = append(rows, *row)
		}
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].PracticeID < rows[j].PracticeID })

	return rows, nil
}

func (r *memRepository) SumByPractice(context.Context, int64, completion.DayRange) (map[string]int, error) {
	return nil, nil
}

func (r *memRepository) ActiveDays(context.Context, int64, completion.DayRange) (int, error) {
	return 0, nil
}

func (r *memRepository) DailyPracticeSums(
	context.Context, int64, completion.DayRange,
) ([]completion.DailyPracticeSum, error) {
	return nil, nil
}
