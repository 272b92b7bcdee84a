package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

// MemoryPath opens a private in-memory database. It lives as long as the
// single pooled connection, so that connection is never recycled.
const MemoryPath = ":memory:"

const (
	dirMode  = 0o750
	fileMode = 0o600

	pingTimeout     = 5 * time.Second
	connMaxLifetime = time.Hour
	connMaxIdleTime = 30 * time.Minute
)

// DB is the SQLite handle for the show library and playback log.
type DB struct {
	*sql.DB
	path string
}

// Config describes how to open the database file.
type Config struct {
	// Path of the database file; parent directories are created.
	Path string

	// WALMode lets API reads run while the controller writes playbacks.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits for a lock.
	BusyTimeout int
}

// FromConfig maps the database section of the service config.
func FromConfig(cfg config.DatabaseConfig) Config {
	return Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	}
}

// dsn builds the go-sqlite3 connection string for cfg.
func (cfg Config) dsn() string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout*1000))
	q.Set("_foreign_keys", "on")
	if cfg.WALMode && cfg.Path != MemoryPath {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at cfg.Path and checks the
// connection. The pool holds a single connection: SQLite has one writer,
// and an in-memory database must never see a second connection.
func Open(cfg Config) (*DB, error) {
	memory := cfg.Path == MemoryPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if !memory {
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Path, err)
	}

	if !memory {
		_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // file may appear only on first write
	}

	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// Close closes the pool. Closing a zero DB is a no-op.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the database file path, or MemoryPath.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
