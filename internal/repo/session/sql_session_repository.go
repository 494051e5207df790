package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/practice-tracker/internal/domain"
	"github.com/mkrupp/practice-tracker/internal/infra/logging"
	"github.com/mkrupp/practice-tracker/internal/repo/sqldb"
)

// SQLSessionRepository implements Repository on top of sqldb.
type SQLSessionRepository struct {
	db  *sqldb.DB
	log logging.Logger
}

var _ Repository = (*SQLSessionRepository)(nil)

// NewSQLSessionRepository creates a repository using an opened and migrated database.
func NewSQLSessionRepository(db *sqldb.DB) *SQLSessionRepository {
	return &SQLSessionRepository{
		db:  db,
		log: logging.GetLogger("repo.session"),
	}
}

// Create implements Repository.Create.
func (r *SQLSessionRepository) Create(ctx context.Context, s domain.Session) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.Rebind(
			"INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)"),
			s.ID,
			s.UserID,
			s.TokenHash,
			sqldb.UnixMilli(s.ExpiresAt),
			sqldb.UnixMilli(s.CreatedAt),
		)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// FindActive implements Repository.FindActive.
func (r *SQLSessionRepository) FindActive(
	ctx context.Context, tokenHash string, now time.Time,
) (*domain.Session, *domain.User, bool, error) {
	var (
		s                    domain.Session
		u                    domain.User
		expiresAt, createdAt int64
		userCreatedAt        int64
	)

	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT s.id, s.user_id, s.token_hash, s.expires_at, s.created_at,
		       u.id, u.username, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = ? AND s.expires_at > ?`),
		tokenHash,
		sqldb.UnixMilli(now),
	).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &expiresAt, &createdAt,
		&u.ID, &u.Username, &u.PasswordHash, &userCreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, false, nil
		}

		return nil, nil, false, fmt.Errorf("query session: %w", err)
	}

	s.ExpiresAt = sqldb.FromUnixMilli(expiresAt)
	s.CreatedAt = sqldb.FromUnixMilli(createdAt)
	u.CreatedAt = sqldb.FromUnixMilli(userCreatedAt)

	return &s, &u, true, nil
}

// DeleteByTokenHash implements Repository.DeleteByTokenHash.
func (r *SQLSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM sessions WHERE token_hash = ?"), tokenHash)

		return err //nolint:wrapcheck
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// DeleteExpired implements Repository.DeleteExpired.
func (r *SQLSessionRepository) DeleteExpired(ctx context.Context, userID int64, now time.Time) (n int64, err error) {
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			r.db.Rebind("DELETE FROM sessions WHERE user_id = ? AND expires_at <= ?"),
			userID,
			sqldb.UnixMilli(now),
		)
		if err != nil {
			return err //nolint:wrapcheck
		}

		n, err = res.RowsAffected()

		return err //nolint:wrapcheck
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	if n > 0 {
		r.log.DebugContext(ctx, "pruned expired sessions", "user_id", userID, "count", n)
	}

	return n, nil
}
