// Package store is the local record store: the single owner of every
// persisted entity.
//
// Records are JSON documents grouped in collections and addressed by id.
// Writes land in SQLite first and are usable immediately; nothing here talks
// to the network. Collections with domain rules (saved workouts, sessions,
// calendar markers) are normalized and validated on every write, and the
// saved-workout quota is enforced atomically with the insert.
//
// All writes go through one mutex, so concurrent writers to the same id are
// serialized and the last write wins.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
)

var (
	// ErrNotFound is returned by Get and Update for a missing id.
	// Delete never returns it.
	ErrNotFound = errors.New("record not found")

	// ErrQuotaExceeded is returned when creating a saved workout while
	// MaxSavedWorkouts already exist.
	ErrQuotaExceeded = errors.New("saved workout quota exceeded")

	// ErrTooManyExercises is returned when a workout carries more than
	// MaxExercises entries.
	ErrTooManyExercises = schema.ErrTooManyExercises

	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("record already exists")

	// ErrNotObject is returned when record data is not a JSON object.
	ErrNotObject = errors.New("record data must be a JSON object")
)

// Op names a kind of write.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write.
type Change struct {
	Op         Op
	Collection string
	ID         string
	Version    int64
}

// Record is one stored entity.
type Record struct {
	Collection string
	ID         string
	Version    int64
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the record data into v.
func (r *Record) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", r.Collection, r.ID, err)
	}
	return nil
}

// Config holds store configuration.
type Config struct {
	// Clock stamps records. Defaults to the real clock.
	Clock clockwork.Clock

	// Location decides which calendar day a timestamp falls on.
	// Defaults to time.Local.
	Location *time.Location

	// OnChange, if set, is called after every committed write.
	OnChange func(Change)

	// Logger for store events. Defaults to stderr.
	Logger *log.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Clock:    clockwork.NewRealClock(),
		Location: time.Local,
		Logger:   log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
}

// Store is the local record store.
type Store struct {
	db     *db.DB
	clock  clockwork.Clock
	loc    *time.Location
	notify func(Change)
	logger *log.Logger

	// mu serializes writes.
	mu sync.Mutex
}

// New creates a store over an initialized database with default settings.
func New(database *db.DB) *Store {
	return NewWithConfig(database, DefaultConfig())
}

// NewWithConfig creates a store with custom configuration.
func NewWithConfig(database *db.DB, cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Store{
		db:     database,
		clock:  cfg.Clock,
		loc:    cfg.Location,
		notify: cfg.OnChange,
		logger: cfg.Logger,
	}
}

// DB returns the underlying database.
func (s *Store) DB() *db.DB {
	return s.db
}

// Location returns the time zone used for calendar days.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Get returns a record, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, id string) (*Record, error) {
	rec, err := s.db.GetRecord(ctx, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return fromDB(rec), nil
}

// List returns every record of a collection in insertion order.
func (s *Store) List(ctx context.Context, collection string) ([]*Record, error) {
	recs, err := s.db.ListRecords(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromDB(rec))
	}
	return out, nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	return s.db.CountRecords(ctx, collection)
}

// Create validates data and stores it as a new record.
//
// The record id is taken from the document's "id" field, or minted as a
// fresh local id when absent. Saved workouts fail with ErrQuotaExceeded at
// the cap and ErrTooManyExercises past the exercise bound.
func (s *Store) Create(ctx context.Context, collection string, data []byte) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create(ctx, collection, data)
}

func (s *Store) create(ctx context.Context, collection string, data []byte) (*Record, error) {
	now := s.clock.Now()
	r := ruleFor(collection)

	id, doc, err := r.normalize(data, now)
	if err != nil {
		return nil, err
	}

	rec := &db.Record{
		Collection: collection,
		ID:         id,
		Data:       doc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.db.InsertRecordLimited(ctx, rec, r.limit)
	switch {
	case errors.Is(err, db.ErrLimitReached):
		return nil, fmt.Errorf("%w: at most %d %s", ErrQuotaExceeded, r.limit, collection)
	case errors.Is(err, db.ErrDuplicate):
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrExists)
	case err != nil:
		return nil, err
	}

	s.changed(Change{Op: OpCreate, Collection: collection, ID: id, Version: rec.Version})
	return fromDB(rec), nil
}

// Update merges partial into the stored document and re-validates it.
//
// partial is a JSON object; each top-level key replaces the stored value and
// a null value removes the key. The id cannot be changed. Returns
// ErrNotFound for a missing id.
func (s *Store) Update(ctx context.Context, collection, id string, partial []byte) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, collection, id, partial)
}

func (s *Store) update(ctx context.Context, collection, id string, partial []byte) (*Record, error) {
	existing, err := s.db.GetRecord(ctx, collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	merged, err := mergeObject(existing.Data, partial, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	newID, doc, err := ruleFor(collection).normalize(merged, now)
	if err != nil {
		return nil, err
	}
	if newID != id {
		return nil, fmt.Errorf("%w: update would move %s/%s to %s", schema.ErrInvalid, collection, id, newID)
	}

	rec, err := s.db.UpdateRecord(ctx, collection, id, doc, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	s.changed(Change{Op: OpUpdate, Collection: collection, ID: id, Version: rec.Version})
	return fromDB(rec), nil
}

// Delete removes a record. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteRecord(ctx, collection, id); err != nil {
		return err
	}
	s.changed(Change{Op: OpDelete, Collection: collection, ID: id})
	return nil
}

// GetValue returns a scalar; ok is false when unset.
func (s *Store) GetValue(ctx context.Context, key string) (value string, ok bool, err error) {
	return s.db.GetValue(ctx, key)
}

// SetValue stores a scalar.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.SetValue(ctx, key, value)
}

// DeleteValueIf clears key only when it holds expected.
func (s *Store) DeleteValueIf(ctx context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.DeleteValueIf(ctx, key, expected)
}

func (s *Store) changed(c Change) {
	if s.notify != nil {
		s.notify(c)
	}
}

func fromDB(rec *db.Record) *Record {
	return &Record{
		Collection: rec.Collection,
		ID:         rec.ID,
		Version:    rec.Version,
		Data:       json.RawMessage(rec.Data),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// mergeObject applies a top-level merge of patch onto base and pins "id".
func mergeObject(base, patch []byte, id string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored record %s: %w", id, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}

	for k, v := range fields {
		if string(v) == "null" {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	if _, ok := doc["id"]; ok {
		pinned, _ := json.Marshal(id)
		doc["id"] = pinned
	}

	return json.Marshal(doc)
}
