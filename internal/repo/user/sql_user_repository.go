package user

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

const userColumns = "id, username, password_hash, created_at"

// SQLUserRepository implements Repository on top of sqldb (SQLite or PostgreSQL).
type SQLUserRepository struct {
	db  *sqldb.DB
	log logging.Logger
	now func() time.Time
}

var _ Repository = (*SQLUserRepository)(nil)

// NewSQLUserRepository creates a repository using an opened and migrated database.
func NewSQLUserRepository(db *sqldb.DB) *SQLUserRepository {
	return &SQLUserRepository{
		db:  db,
		log: logging.GetLogger("repo.user"),
		now: time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		createdAt int64
	)

	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt); err != nil {
		return nil, err //nolint:wrapcheck
	}

	user.CreatedAt = sqldb.FromUnixMilli(createdAt)

	return &user, nil
}

// CreateUser implements Repository.CreateUser.
func (r *SQLUserRepository) CreateUser(
	ctx context.Context, username string, passwordHash []byte,
) (user *domain.User, err error) {
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		user, err = scanUser(tx.QueryRowContext(ctx, r.db.Rebind(
			"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING "+userColumns),
			username,
			passwordHash,
			sqldb.UnixMilli(r.now()),
		))

		return err
	})
	if err != nil {
		if sqldb.IsUniqueViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		}

		return nil, fmt.Errorf("insert user: %w", err)
	}

	r.log.DebugContext(ctx, "user created", "user_id", user.ID)

	return user, nil
}

// UpsertUser implements Repository.UpsertUser.
func (r *SQLUserRepository) UpsertUser(
	ctx context.Context, username string, passwordHash []byte,
) (user *domain.User, err error) {
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		user, err = scanUser(tx.QueryRowContext(ctx, r.db.Rebind(`
			INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
			ON CONFLICT (username) DO UPDATE SET password_hash = excluded.password_hash
			RETURNING `+userColumns),
			username,
			passwordHash,
			sqldb.UnixMilli(r.now()),
		))

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return user, nil
}

// GetUserByUsername implements Repository.GetUserByUsername.
func (r *SQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT "+userColumns+" FROM users WHERE username = ?"),
		username,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", err)
	}

	return user, true, nil
}
