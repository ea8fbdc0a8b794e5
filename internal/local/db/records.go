package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record is one stored document.
type Record struct {
	Collection string
	ID         string
	Seq        int64
	Version    int64
	Data       []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// InsertRecord stores a new record.
// Returns ErrDuplicate if (collection, id) already exists.
func (db *DB) InsertRecord(ctx context.Context, rec *Record) error {
	return db.InsertRecordLimited(ctx, rec, 0)
}

// InsertRecordLimited stores a new record only if the collection currently
// holds fewer than limit records (limit <= 0 means unlimited). The count
// check and the insert are one statement, so concurrent writers cannot both
// slip under the limit.
//
// Returns ErrLimitReached or ErrDuplicate when nothing was inserted.
func (db *DB) InsertRecordLimited(ctx context.Context, rec *Record, limit int) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	query := `
	INSERT INTO records (collection, id, version, data, created_at, updated_at)
	SELECT ?, ?, 1, ?, ?, ?
	WHERE ? <= 0 OR (SELECT COUNT(*) FROM records WHERE collection = ?) < ?
	ON CONFLICT(collection, id) DO NOTHING
	`

	res, err := db.conn.ExecContext(ctx, query,
		rec.Collection,
		rec.ID,
		string(rec.Data),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		limit,
		rec.Collection,
		limit,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s/%s: %w", rec.Collection, rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		rec.Version = 1
		return nil
	}

	// Nothing inserted: tell duplicate apart from limit.
	if _, err := db.GetRecord(ctx, rec.Collection, rec.ID); err == nil {
		return fmt.Errorf("%s/%s: %w", rec.Collection, rec.ID, ErrDuplicate)
	}
	return fmt.Errorf("%s holds %d records: %w", rec.Collection, limit, ErrLimitReached)
}

// UpsertRecord inserts or replaces a record, preserving seq for existing rows
// and bumping its version. Used by backup restore.
func (db *DB) UpsertRecord(ctx context.Context, rec *Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	query := `
	INSERT INTO records (collection, id, version, data, created_at, updated_at)
	VALUES (?, ?, 1, ?, ?, ?)
	ON CONFLICT(collection, id) DO UPDATE SET
		data = excluded.data,
		version = records.version + 1,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.ExecContext(ctx, query,
		rec.Collection,
		rec.ID,
		string(rec.Data),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return nil
}

// UpdateRecord replaces the data of an existing record and increments its
// version. Returns sql.ErrNoRows if the record does not exist.
func (db *DB) UpdateRecord(ctx context.Context, collection, id string, data []byte, at time.Time) (*Record, error) {
	query := `
	UPDATE records
	SET data = ?, version = version + 1, updated_at = ?
	WHERE collection = ? AND id = ?
	RETURNING seq, version, created_at, updated_at
	`

	rec := &Record{Collection: collection, ID: id, Data: data}
	var createdAt, updatedAt string
	err := db.conn.QueryRowContext(ctx, query, string(data), formatTime(at), collection, id).
		Scan(&rec.Seq, &rec.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update record %s/%s: %w", collection, id, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// GetRecord retrieves a single record.
// Returns sql.ErrNoRows if the record is not found.
func (db *DB) GetRecord(ctx context.Context, collection, id string) (*Record, error) {
	query := `
	SELECT seq, version, data, created_at, updated_at
	FROM records
	WHERE collection = ? AND id = ?
	`

	rec := &Record{Collection: collection, ID: id}
	var data, createdAt, updatedAt string
	err := db.conn.QueryRowContext(ctx, query, collection, id).
		Scan(&rec.Seq, &rec.Version, &data, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Data = []byte(data)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// ListRecords returns every record of a collection in insertion order.
func (db *DB) ListRecords(ctx context.Context, collection string) ([]*Record, error) {
	query := `
	SELECT seq, id, version, data, created_at, updated_at
	FROM records
	WHERE collection = ?
	ORDER BY seq ASC
	`

	rows, err := db.conn.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{Collection: collection}
		var data, createdAt, updatedAt string
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Version, &data, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Data = []byte(data)
		rec.CreatedAt = parseTime(createdAt)
		rec.UpdatedAt = parseTime(updatedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// DeleteRecord removes a record.
// Returns nil if the record doesn't exist (idempotent).
func (db *DB) DeleteRecord(ctx context.Context, collection, id string) error {
	query := `DELETE FROM records WHERE collection = ? AND id = ?`
	if _, err := db.conn.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", collection, id, err)
	}
	return nil
}

// CountRecords returns the number of records in a collection.
func (db *DB) CountRecords(ctx context.Context, collection string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	return count, nil
}

// Collections returns record counts keyed by collection name.
func (db *DB) Collections(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT collection, COUNT(*) FROM records GROUP BY collection")
	if err != nil {
		return nil, fmt.Errorf("failed to count collections: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan collection count: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}
