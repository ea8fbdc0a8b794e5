package db

import (
	"context"
	"fmt"
	"time"
)

// LogEntry is one row of the append-only rest day log.
type LogEntry struct {
	Seq       int64
	LoggedFor string // YYYY-MM-DD
	Data      []byte
	CreatedAt time.Time
}

// AppendRestDay appends an entry to the rest day log and returns its seq.
// Entries are never updated or deleted.
func (db *DB) AppendRestDay(ctx context.Context, loggedFor string, data []byte, at time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO rest_day_log (logged_for, data, created_at) VALUES (?, ?, ?)",
		loggedFor, string(data), formatTime(at),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append rest day: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read rest day seq: %w", err)
	}
	return seq, nil
}

// ListRestDays returns the whole rest day log, oldest first.
func (db *DB) ListRestDays(ctx context.Context) ([]*LogEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT seq, logged_for, data, created_at FROM rest_day_log ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list rest days: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		e := &LogEntry{}
		var data, createdAt string
		if err := rows.Scan(&e.Seq, &e.LoggedFor, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rest day: %w", err)
		}
		e.Data = []byte(data)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rest days: %w", err)
	}
	return entries, nil
}
