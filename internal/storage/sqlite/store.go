// Package sqlite implements the storage interfaces on a SQLite database.
package sqlite

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/meldtable/internal/game/event"
	"github.com/louisbranch/meldtable/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/meldtable/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// defaultSnapshotRetention caps how many snapshots are kept per game.
// Older ones are pruned on save; replay from an older point falls back to
// the journal.
const defaultSnapshotRetention = 3

// Store provides a SQLite-backed journal and snapshot store.
type Store struct {
	sqlDB             *sql.DB
	registry          *event.Registry
	snapshotRetention int
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshotRetention overrides how many snapshots are kept per game.
func WithSnapshotRetention(retention int) Option {
	return func(s *Store) {
		if retention > 0 {
			s.snapshotRetention = retention
		}
	}
}

// Open opens a SQLite game store at the provided path and applies embedded
// migrations. The registry validates every event before it is persisted.
func Open(path string, registry *event.Registry, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:             sqlDB,
		registry:          registry,
		snapshotRetention: defaultSnapshotRetention,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := runMigrations(sqlDB, migrations.GamesFS, "games"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup
// paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func runMigrations(sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	return sqlitemigrate.ApplyMigrations(sqlDB, migrationFS, migrationRoot)
}
