// Package db provides the embedded SQLite persistence for repsync.
//
// This package is the durable layer under the local record store. It knows
// nothing about workouts or quotas; it stores opaque JSON documents keyed by
// (collection, id), scalar values, an append-only rest-day log, and the
// identity/sync bookkeeping tables.
//
// Architecture:
//   - Database file: <data_dir>/repsync.db
//   - WAL mode: concurrent readers during writes (CLI and daemon share the file)
//   - Tables: records, kv, rest_day_log, identity_map, sync_state
//   - One row per logical record; insertion order is the records.seq column
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrDuplicate is returned when inserting a record whose (collection, id)
	// already exists.
	ErrDuplicate = errors.New("record already exists")

	// ErrLimitReached is returned by InsertRecordLimited when the collection
	// already holds the maximum number of records.
	ErrLimitReached = errors.New("collection limit reached")
)

// timeLayout is used for every stored timestamp. Nanosecond precision keeps
// string order equal to time order.
const timeLayout = time.RFC3339Nano

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened with WAL for concurrent reads, a 5 second busy
// timeout and foreign keys enabled. The parent directory is created if
// needed. The caller MUST call Close() when done.
//
// Example:
//
//	database, err := db.Open(filepath.Join(dataDir, "repsync.db"))
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(normal)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	// WAL is a property of the file and sticks once set.
	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- One row per logical record. seq gives insertion order and survives updates.
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		data TEXT NOT NULL,  -- JSON document
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (collection, id)
	);

	-- Scalar values (free rest day usage, settings).
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Append-only rest day history.
	CREATE TABLE IF NOT EXISTS rest_day_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		logged_for TEXT NOT NULL,
		data TEXT NOT NULL,  -- JSON document
		created_at TEXT NOT NULL
	);

	-- local id -> database id. Rows are never updated.
	CREATE TABLE IF NOT EXISTS identity_map (
		local_id TEXT PRIMARY KEY,
		database_id TEXT NOT NULL,
		bound_at TEXT NOT NULL
	);

	-- Last record version pushed to the remote, for dirty tracking.
	CREATE TABLE IF NOT EXISTS sync_state (
		local_id TEXT PRIMARY KEY,
		pushed_version INTEGER NOT NULL,
		pushed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, seq);
	CREATE INDEX IF NOT EXISTS idx_rest_day_log_for ON rest_day_log(logged_for);
	CREATE INDEX IF NOT EXISTS idx_identity_database ON identity_map(database_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
