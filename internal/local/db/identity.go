package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Binding is one row of identity_map.
type Binding struct {
	LocalID    string
	DatabaseID string
	BoundAt    time.Time
}

// InsertBinding records localID -> databaseID if localID is unbound.
//
// It never overwrites. When localID is already bound the existing database
// id is returned with inserted=false so the caller can decide whether the
// write was a repeat or a conflict.
func (db *DB) InsertBinding(ctx context.Context, localID, databaseID string, at time.Time) (inserted bool, existing string, err error) {
	res, err := db.conn.ExecContext(ctx, `
	INSERT INTO identity_map (local_id, database_id, bound_at) VALUES (?, ?, ?)
	ON CONFLICT(local_id) DO NOTHING
	`, localID, databaseID, formatTime(at))
	if err != nil {
		return false, "", fmt.Errorf("failed to bind %s: %w", localID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return true, databaseID, nil
	}

	existing, err = db.GetBinding(ctx, localID)
	if err != nil {
		return false, "", fmt.Errorf("failed to read existing binding for %s: %w", localID, err)
	}
	return false, existing, nil
}

// GetBinding returns the database id bound to localID.
// Returns sql.ErrNoRows if localID is unbound.
func (db *DB) GetBinding(ctx context.Context, localID string) (string, error) {
	var databaseID string
	err := db.conn.QueryRowContext(ctx,
		"SELECT database_id FROM identity_map WHERE local_id = ?", localID).Scan(&databaseID)
	if err != nil {
		return "", err
	}
	return databaseID, nil
}

// ListBindings returns every binding, oldest first.
func (db *DB) ListBindings(ctx context.Context) ([]*Binding, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT local_id, database_id, bound_at FROM identity_map ORDER BY bound_at ASC, local_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*Binding
	for rows.Next() {
		b := &Binding{}
		var boundAt string
		if err := rows.Scan(&b.LocalID, &b.DatabaseID, &boundAt); err != nil {
			return nil, fmt.Errorf("failed to scan binding: %w", err)
		}
		b.BoundAt = parseTime(boundAt)
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// SetPushedVersion records that version of localID reached the remote.
// The stored version only moves forward.
func (db *DB) SetPushedVersion(ctx context.Context, localID string, version int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO sync_state (local_id, pushed_version, pushed_at) VALUES (?, ?, ?)
	ON CONFLICT(local_id) DO UPDATE SET
		pushed_version = MAX(sync_state.pushed_version, excluded.pushed_version),
		pushed_at = excluded.pushed_at
	`, localID, version, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to record pushed version for %s: %w", localID, err)
	}
	return nil
}

// GetPushedVersion returns the last pushed version of localID, or 0.
func (db *DB) GetPushedVersion(ctx context.Context, localID string) (int64, error) {
	var version int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT pushed_version FROM sync_state WHERE local_id = ?", localID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read pushed version for %s: %w", localID, err)
	}
	return version, nil
}
