package completion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/repo/sqldb"
)

const (
	completionColumns = "id, user_id, practice_id, day_key, count, last_completed_at, created_at, updated_at"
	keyPredicate      = "user_id = ? AND practice_id = ? AND day_key = ?"
)

// SQLCompletionRepository implements Repository on top of sqldb.
type SQLCompletionRepository struct {
	db  *sqldb.DB
	log logging.Logger
}

var _ Repository = (*SQLCompletionRepository)(nil)

// NewSQLCompletionRepository creates a repository using an opened and migrated database.
func NewSQLCompletionRepository(db *sqldb.DB) *SQLCompletionRepository {
	return &SQLCompletionRepository{
		db:  db,
		log: logging.GetLogger("repo.completion"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompletion(row rowScanner) (*domain.Completion, error) {
	var (
		c                    domain.Completion
		last                 sql.NullInt64
		createdAt, updatedAt int64
	)

	if err := row.Scan(
		&c.ID, &c.UserID, &c.PracticeID, &c.DayKey, &c.Count, &last, &createdAt, &updatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}

	c.LastCompletedAt = sqldb.FromNullUnixMilli(last)
	c.CreatedAt = sqldb.FromUnixMilli(createdAt)
	c.UpdatedAt = sqldb.FromUnixMilli(updatedAt)

	return &c, nil
}

// scanOptional maps sql.ErrNoRows to a false result.
func scanOptional(row rowScanner, op string) (*domain.Completion, bool, error) {
	c, err := scanCompletion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	return c, true, nil
}

// WithTx implements Repository.WithTx.
func (r *SQLCompletionRepository) WithTx(ctx context.Context, fn func(Store) error) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error { //nolint:wrapcheck
		return fn(&sqlStore{tx: tx, dialect: r.db.Dialect()})
	})
}

type sqlStore struct {
	tx      *sql.Tx
	dialect sqldb.Dialect
}

var _ Store = (*sqlStore)(nil)

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *sqlStore) TryIncrement(
	ctx context.Context, key domain.CompletionKey, delta, maxPerDay int, now time.Time,
) (*domain.Completion, bool, error) {
	ms := sqldb.UnixMilli(now)

	return scanOptional(s.queryRow(ctx, `
		UPDATE daily_practice_completions
		SET count = count + ?, last_completed_at = ?, updated_at = ?
		WHERE `+keyPredicate+` AND count <= ?
		RETURNING `+completionColumns,
		delta, ms, ms,
		key.UserID, key.PracticeID, key.DayKey,
		maxPerDay-delta,
	), "increment completion")
}

func (s *sqlStore) InsertIfAbsent(
	ctx context.Context, key domain.CompletionKey, count int, now time.Time,
) (*domain.Completion, bool, error) {
	ms := sqldb.UnixMilli(now)

	return scanOptional(s.queryRow(ctx, `
		INSERT INTO daily_practice_completions
			(user_id, practice_id, day_key, count, last_completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, practice_id, day_key) DO NOTHING
		RETURNING `+completionColumns,
		key.UserID, key.PracticeID, key.DayKey, count, ms, ms, ms,
	), "insert completion")
}

func (s *sqlStore) Get(ctx context.Context, key domain.CompletionKey) (*domain.Completion, bool, error) {
	return scanOptional(s.queryRow(ctx,
		"SELECT "+completionColumns+" FROM daily_practice_completions WHERE "+keyPredicate,
		key.UserID, key.PracticeID, key.DayKey,
	), "get completion")
}

func (s *sqlStore) TryDecrement(
	ctx context.Context, key domain.CompletionKey, delta int, now time.Time,
) (*domain.Completion, bool, error) {
	return scanOptional(s.queryRow(ctx, `
		UPDATE daily_practice_completions
		SET count = count - ?, updated_at = ?
		WHERE `+keyPredicate+` AND count > ?
		RETURNING `+completionColumns,
		delta, sqldb.UnixMilli(now),
		key.UserID, key.PracticeID, key.DayKey,
		delta,
	), "decrement completion")
}

func (s *sqlStore) DeleteIfAtMost(ctx context.Context, key domain.CompletionKey, delta int) (bool, error) {
	res, err := s.tx.ExecContext(ctx, s.dialect.Rebind(
		"DELETE FROM daily_practice_completions WHERE "+keyPredicate+" AND count <= ?"),
		key.UserID, key.PracticeID, key.DayKey, delta,
	)
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}

	return n > 0, nil
}

// rangeFilter builds the user and day range predicate.
func rangeFilter(userID int64, r DayRange) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}

	if r.Start != "" {
		clauses = append(clauses, "day_key >= ?")
		args = append(args, r.Start)
	}

	if r.End != "" {
		clauses = append(clauses, "day_key <= ?")
		args = append(args, r.End)
	}

	return strings.Join(clauses, " AND "), args
}

// ListForDay implements Repository.ListForDay.
func (r *SQLCompletionRepository) ListForDay(ctx context.Context, userID int64, dayKey string) ([]domain.Completion, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT "+completionColumns+" FROM daily_practice_completions "+
			"WHERE user_id = ? AND day_key = ? ORDER BY practice_id"),
		userID, dayKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	completions := []domain.Completion{}

	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}

		completions = append(completions, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}

	return completions, nil
}

// SumByPractice implements Repository.SumByPractice.
func (r *SQLCompletionRepository) SumByPractice(ctx context.Context, userID int64, dr DayRange) (map[string]int, error) {
	where, args := rangeFilter(userID, dr)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT practice_id, COALESCE(SUM(count), 0) FROM daily_practice_completions "+
			"WHERE "+where+" GROUP BY practice_id"),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sum by practice: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]int)

	for rows.Next() {
		var (
			practiceID string
			sum        int64
		)

		if err := rows.Scan(&practiceID, &sum); err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}

		sums[practiceID] = int(sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sum by practice: %w", err)
	}

	return sums, nil
}

// ActiveDays implements Repository.ActiveDays.
func (r *SQLCompletionRepository) ActiveDays(ctx context.Context, userID int64, dr DayRange) (int, error) {
	where, args := rangeFilter(userID, dr)

	var n int64

	err := r.db.QueryRowContext(ctx, r.db.Rebind(
		"SELECT COUNT(*) FROM ("+
			"SELECT day_key FROM daily_practice_completions WHERE "+where+
			" GROUP BY day_key HAVING SUM(count) > 0"+
			") active"),
		args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active days: %w", err)
	}

	return int(n), nil
}

// DailyPracticeSums implements Repository.DailyPracticeSums.
func (r *SQLCompletionRepository) DailyPracticeSums(
	ctx context.Context, userID int64, dr DayRange,
) ([]DailyPracticeSum, error) {
	where, args := rangeFilter(userID, dr)

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(
		"SELECT day_key, practice_id, COALESCE(SUM(count), 0) FROM daily_practice_completions "+
			"WHERE "+where+" GROUP BY day_key, practice_id ORDER BY day_key, practice_id"),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("daily sums: %w", err)
	}
	defer rows.Close()

	var sums []DailyPracticeSum

	for rows.Next() {
		var (
			s   DailyPracticeSum
			sum int64
		)

		if err := rows.Scan(&s.DayKey, &s.PracticeID, &sum); err != nil {
			return nil, fmt.Errorf("scan daily sum: %w", err)
		}

		s.Count = int(sum)
		sums = append(sums, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily sums: %w", err)
	}

	return sums, nil
}
