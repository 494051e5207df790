// Package sqldb opens the relational store (SQLite or PostgreSQL), applies the
// schema migrations and provides the transaction helper shared by repositories.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"   // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/mkrupp/practice-tracker/internal/infra/logging"
)

// ErrUnknownDriver is returned for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("unknown database driver")

// Config holds database connection settings.
type Config struct {
	// Driver selects the backend: "sqlite" or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`
	// DSN is a file path for sqlite or a connection URL for postgres
	DSN string `env:"DSN" default:"var/storage/tracker.db"`
	// MaxOpenConns limits the pool size
	MaxOpenConns int `env:"MAX_OPEN_CONNS" default:"10"`
	// ConnMaxLifetime recycles pooled connections
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`
	// BusyTimeout is how long sqlite waits on a locked database
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
}

// DB wraps *sql.DB with the dialect needed to write portable queries.
type DB struct {
	*sql.DB

	dialect   Dialect
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	log := logging.GetLogger("repo.sqldb").With(
		logging.Group("db", "driver", cfg.Driver),
	)

	dsn := cfg.DSN
	if dialect == DialectSQLite {
		dsn = sqliteDSN(cfg.DSN, cfg.BusyTimeout)
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	log.DebugContext(ctx, "database opened")

	return &DB{
		DB:        db,
		dialect:   dialect,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// sqliteDSN appends the connection pragmas understood by modernc.org/sqlite.
func sqliteDSN(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Set("_txlock", "immediate")

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + params.Encode()
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Rebind rewrites `?` placeholders for the connection's dialect.
func (db *DB) Rebind(query string) string {
	return db.dialect.Rebind(query)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and rolling
// back otherwise. SQLite write transactions are serialized in-process.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if db.dialect == DialectSQLite {
		db.writeLock.Lock()
		defer db.writeLock.Unlock()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()

			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}

		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// UnixMilli converts an instant into the stored representation.
func UnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMilli converts a stored instant back into time.Time (UTC).
func FromUnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FromNullUnixMilli converts a nullable stored instant.
func FromNullUnixMilli(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}

	t := FromUnixMilli(ms.Int64)

	return &t
}
