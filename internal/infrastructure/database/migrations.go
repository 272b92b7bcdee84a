package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"time"
)

// MigrationsFS holds the *.sql migration files. The top-level migrations
// package sets it from an embedded directory; nil means no migrations.
var MigrationsFS fs.FS

// MigrationsDir is the directory inside MigrationsFS holding the files.
var MigrationsDir = "."

// ErrNoDownMigration is returned when rolling back a migration that has
// no .down.sql file.
var ErrNoDownMigration = errors.New("database: migration has no down file")

// migrationFile matches YYYYMMDD_HHMMSS_name.up.sql and .down.sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned schema change.
type Migration struct {
	Version string // YYYYMMDD_HHMMSS
	Name    string
	Up      string
	Down    string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TEXT NOT NULL
) STRICT`

// Migrate applies every pending migration, oldest first. Each migration
// commits on its own; after a failure the earlier ones stay applied and a
// rerun resumes at the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
				m.Version, m.Name, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration. It is a no-op when
// nothing is applied.
func (db *DB) Rollback(ctx context.Context) error {
	applied, _, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}
	last := applied[len(applied)-1]

	all, err := loadMigrations(MigrationsFS, MigrationsDir)
	if err != nil {
		return err
	}
	var down string
	for _, m := range all {
		if m.Version == last.Version {
			down = m.Down
		}
	}
	if down == "" {
		return fmt.Errorf("%w: %s_%s", ErrNoDownMigration, last.Version, last.Name)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, last.Version)
		return err
	})
	if err != nil {
		return fmt.Errorf("rolling back migration %s_%s: %w", last.Version, last.Name, err)
	}
	return nil
}

// MigrationStatus lists applied migrations (oldest first) and the
// migrations still to apply.
func (db *DB) MigrationStatus(ctx context.Context) (applied []AppliedMigration, pending []Migration, err error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var a AppliedMigration
		var at string
		if err := rows.Scan(&a.Version, &a.Name, &at); err != nil {
			return nil, nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		a.AppliedAt, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // written by Migrate
		applied = append(applied, a)
		done[a.Version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading schema_migrations: %w", err)
	}

	all, err := loadMigrations(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range all {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck // returning the original error
		return err
	}
	return tx.Commit()
}

// loadMigrations reads and pairs migration files, sorted by version. Files
// not matching the naming scheme are ignored; an up file is required.
func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		m := migrationFile.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}

		version, name, direction := m[1], m[2], m[3]
		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: name}
			byVersion[version] = mig
		}
		if direction == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
