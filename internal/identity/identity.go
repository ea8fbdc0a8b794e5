// Package identity maps locally minted identifiers to the identifiers the
// remote system of record assigns.
//
// The mapping is append-only: a local id is bound at most once and a
// binding is never overwritten. Binding the same pair twice is a no-op;
// binding a different remote id is a ConflictError, which means two sync
// passes pushed the same entity and is always a bug worth logging.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
)

var (
	// ErrUnresolved means the local id has no remote id yet. Callers should
	// treat it as "needs sync now", not as a permanent absence.
	ErrUnresolved = errors.New("local id not yet synced")

	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("identity conflict")
)

// ConflictError reports an attempt to rebind a local id to a different
// remote id. The original binding is left intact.
type ConflictError struct {
	LocalID   schema.ID
	Existing  schema.ID
	Attempted schema.ID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identity conflict: %s is bound to %s, refusing %s", e.LocalID, e.Existing, e.Attempted)
}

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IsConflict reports whether err is an identity conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Binding is one localId -> databaseId entry.
type Binding struct {
	LocalID    schema.ID
	DatabaseID schema.ID
	BoundAt    time.Time
}

// Mapper resolves and records identity bindings.
type Mapper struct {
	db    *db.DB
	clock clockwork.Clock
}

// New creates a mapper over an initialized database.
// A nil clock uses the real clock.
func New(database *db.DB, clock clockwork.Clock) *Mapper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mapper{db: database, clock: clock}
}

// Resolve returns the remote id bound to localID, or ErrUnresolved.
func (m *Mapper) Resolve(ctx context.Context, localID schema.ID) (schema.ID, error) {
	if !localID.IsLocal() {
		return schema.ID{}, fmt.Errorf("%w: resolve expects a local id, got %q", schema.ErrInvalid, localID)
	}

	value, err := m.db.GetBinding(ctx, localID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return schema.ID{}, fmt.Errorf("%s: %w", localID, ErrUnresolved)
	}
	if err != nil {
		return schema.ID{}, fmt.Errorf("failed to resolve %s: %w", localID, err)
	}
	return schema.RemoteID(value), nil
}

// Bind records localID -> databaseID.
//
// Concurrent binds of one local id race only on which one is stored; the
// loser gets nil if it carried the same remote id and *ConflictError
// otherwise.
func (m *Mapper) Bind(ctx context.Context, localID, databaseID schema.ID) error {
	if !localID.IsLocal() {
		return fmt.Errorf("%w: bind expects a local id, got %q", schema.ErrInvalid, localID)
	}
	if !databaseID.IsRemote() {
		return fmt.Errorf("%w: bind expects a remote id, got %q", schema.ErrInvalid, databaseID)
	}

	_, existing, err := m.db.InsertBinding(ctx, localID.String(), databaseID.Value, m.clock.Now())
	if err != nil {
		return err
	}
	if existing != databaseID.Value {
		return &ConflictError{
			LocalID:   localID,
			Existing:  schema.RemoteID(existing),
			Attempted: databaseID,
		}
	}
	return nil
}

// Bindings returns every binding, oldest first.
func (m *Mapper) Bindings(ctx context.Context) ([]Binding, error) {
	rows, err := m.db.ListBindings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Binding, 0, len(rows))
	for _, row := range rows {
		local, err := schema.ParseID(row.LocalID)
		if err != nil {
			return nil, fmt.Errorf("corrupt binding %q: %w", row.LocalID, err)
		}
		out = append(out, Binding{
			LocalID:    local,
			DatabaseID: schema.RemoteID(row.DatabaseID),
			BoundAt:    row.BoundAt,
		})
	}
	return out, nil
}

// PushedVersion returns the last record version of localID known to be on
// the remote, or 0.
func (m *Mapper) PushedVersion(ctx context.Context, localID schema.ID) (int64, error) {
	return m.db.GetPushedVersion(ctx, localID.String())
}

// MarkPushed records that version of localID reached the remote.
func (m *Mapper) MarkPushed(ctx context.Context, localID schema.ID, version int64) error {
	return m.db.SetPushedVersion(ctx, localID.String(), version, m.clock.Now())
}
