package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations
var migrationsFS embed.FS

var (
	// ErrInvalidMigration is returned for malformed migration file names.
	ErrInvalidMigration = errors.New("invalid migration")

	// ErrSchemaTooNew is returned when the database was migrated by a newer build.
	ErrSchemaTooNew = errors.New("database schema is newer than supported")
)

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations returns the embedded migrations for the dialect, ordered by version.
func (d Dialect) Migrations() ([]Migration, error) {
	sub, err := fs.Sub(migrationsFS, "migrations/"+string(d))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", d, err)
	}

	return readMigrations(sub)
}

func readMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, name, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("%w: %s: expected NNN_name.sql", ErrInvalidMigration, entry.Name())
		}

		v, err := strconv.Atoi(version)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%w: %s: bad version", ErrInvalidMigration, entry.Name())
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: v,
			Name:    strings.TrimSuffix(name, ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidMigration, migrations[i].Version)
		}
	}

	return migrations, nil
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	if err := db.ensureVersionTable(ctx); err != nil {
		return 0, err
	}

	var version int

	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}

	return version, nil
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	if _, err := db.ExecContext(ctx,
		"CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)",
	); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	return nil
}

// Migrate applies all pending migrations and returns how many were applied.
// Each migration runs in its own transaction together with the version bump.
func (db *DB) Migrate(ctx context.Context) (applied int, err error) {
	log := db.log.With("op", "migrate")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "migration failed", "applied", applied, "error", err)
		} else {
			log.InfoContext(ctx, "schema up to date", "applied", applied)
		}
	}()

	migrations, err := db.dialect.Migrations()
	if err != nil {
		return 0, err
	}

	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	if len(migrations) == 0 {
		return 0, nil
	}

	if latest := migrations[len(migrations)-1].Version; current > latest {
		return 0, fmt.Errorf("%w: database at %d, latest known %d", ErrSchemaTooNew, current, latest)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		log.DebugContext(ctx, "applying migration", "version", m.Version, "name", m.Name)

		if err := db.WithTx(ctx, func(tx *sql.Tx) error {
			return applyMigration(ctx, tx, db.dialect, m)
		}); err != nil {
			return applied, err
		}

		applied++
	}

	return applied, nil
}

func applyMigration(ctx context.Context, tx *sql.Tx, dialect Dialect, m Migration) error {
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
		return fmt.Errorf("clear schema version: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		dialect.Rebind("INSERT INTO schema_version (version) VALUES (?)"), m.Version,
	); err != nil {
		return fmt.Errorf("set schema version %d: %w", m.Version, err)
	}

	return nil
}
