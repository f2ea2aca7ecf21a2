package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	sqliteSchemaVersion = 1

	// DefaultBusyTimeout is the SQLite busy timeout in milliseconds.
	DefaultBusyTimeout = 5000
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		key        TEXT PRIMARY KEY,
		members    TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL
	)`,
}

// SQLiteStore keeps every key as one row of the snapshots table. Members are
// stored as a JSON array.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Compile-time interface check.
var (
	_ Store  = (*SQLiteStore)(nil)
	_ Lister = (*SQLiteStore)(nil)
)

// OpenSQLite opens (or creates) the database at path with WAL mode and a single
// connection, then migrates the schema. The caller must Close the store.
func OpenSQLite(path string, busyTimeout int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("snapshot: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: set busy_timeout: %w", err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("snapshot: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("snapshot: read schema version: %w", err)
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("snapshot: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", sqliteSchemaVersion); err != nil {
		return fmt.Errorf("snapshot: record schema version: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key string) Set {
	if err := ValidateKey(key); err != nil {
		s.logger.Warn("snapshot: load rejected", "key", key, "error", err)
		return NewSet()
	}

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT members FROM snapshots WHERE key = ?", key).Scan(&raw)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("snapshot: query failed, using empty set", "key", key, "error", err)
		}
		return NewSet()
	}

	var out Set
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn("snapshot: corrupt row, using empty set", "key", key, "error", err)
		return NewSet()
	}
	if out == nil {
		return NewSet()
	}
	return out
}

// Save implements Store. The upsert runs as a single statement, so readers
// see either the old or the new row.
func (s *SQLiteStore) Save(ctx context.Context, key string, set Set) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	members, err := json.Marshal(set.Sorted())
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (key, members, updated_at) VALUES (?, ?, ?)",
		key, string(members), s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key in ascending order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM snapshots ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("snapshot: list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("snapshot: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
