package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/db"
	"github.com/liftlog/repsync/internal/local/schema"
)

// ImportOptions contains configuration for a restore.
type ImportOptions struct {
	Path   string // Backup file to read
	DryRun bool   // Validate and count without writing
}

// ImportResult contains statistics about a restore.
type ImportResult struct {
	Records   int
	RestDays  int
	Bindings  int
	Values    int
	Skipped   int
	Conflicts int
	Errors    []string
}

// Import restores a backup into database.
//
// Records are validated and upserted by id; a saved workout that is new to
// the database still counts against the saved workout cap. Rest day entries
// already in the log are skipped. Bindings go through the identity mapper,
// so a local id already bound to a different remote id is reported as a
// conflict and the existing binding kept. Per-entry problems are collected
// in Errors and do not stop the restore.
func Import(ctx context.Context, database *db.DB, mapper *identity.Mapper, opts ImportOptions) (*ImportResult, error) {
	entries, err := ReadFile(opts.Path)
	if err != nil {
		return nil, err
	}

	r := &restorer{
		db:       database,
		mapper:   mapper,
		dryRun:   opts.DryRun,
		result:   &ImportResult{},
		versions: make(map[string]versionPair),
	}
	if err := r.loadRestLog(ctx); err != nil {
		return nil, err
	}

	// Bindings depend on restored record versions, so records go first.
	for _, kind := range []EntryKind{KindRecord, KindRestDay, KindBinding, KindValue} {
		for _, e := range entries {
			if e.Kind != kind {
				continue
			}
			if err := ctx.Err(); err != nil {
				return r.result, err
			}
			r.apply(ctx, e)
		}
	}
	for _, e := range entries {
		switch e.Kind {
		case KindRecord, KindRestDay, KindBinding, KindValue:
		default:
			r.fail("unknown entry kind %q", e.Kind)
		}
	}

	return r.result, nil
}

type versionPair struct {
	exported int64
	restored int64
}

type restorer struct {
	db     *db.DB
	mapper *identity.Mapper
	dryRun bool
	result *ImportResult

	restLog  map[string]bool
	versions map[string]versionPair // record id -> versions
}

func (r *restorer) fail(format string, args ...any) {
	r.result.Errors = append(r.result.Errors, fmt.Sprintf(format, args...))
}

func (r *restorer) loadRestLog(ctx context.Context) error {
	existing, err := r.db.ListRestDays(ctx)
	if err != nil {
		return err
	}
	r.restLog = make(map[string]bool, len(existing))
	for _, e := range existing {
		_, data, err := canonicalRestDay(e.Data)
		if err != nil {
			data = e.Data
		}
		r.restLog[restKey(e.LoggedFor, data)] = true
	}
	return nil
}

func restKey(loggedFor string, data []byte) string {
	return loggedFor + "\x00" + string(data)
}

// canonicalRestDay re-encodes a rest day so entries compare equal whatever
// format they were read from.
func canonicalRestDay(data []byte) (*schema.RestDayCompletion, []byte, error) {
	var entry schema.RestDayCompletion
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil, err
	}
	out, err := json.Marshal(&entry)
	if err != nil {
		return nil, nil, err
	}
	return &entry, out, nil
}

func (r *restorer) apply(ctx context.Context, e *Entry) {
	var err error
	switch e.Kind {
	case KindRecord:
		err = r.record(ctx, e)
	case KindRestDay:
		err = r.restDay(ctx, e)
	case KindBinding:
		err = r.binding(ctx, e)
	case KindValue:
		err = r.value(ctx, e)
	}
	if err != nil {
		r.fail("%s %s: %v", e.Kind, entryName(e), err)
	}
}

func entryName(e *Entry) string {
	switch e.Kind {
	case KindRecord:
		return e.Collection + "/" + e.ID
	case KindRestDay:
		return e.LoggedFor
	case KindBinding:
		return e.LocalID
	default:
		return e.Key
	}
}

func (r *restorer) record(ctx context.Context, e *Entry) error {
	if e.Collection == "" || e.ID == "" {
		return fmt.Errorf("collection and id are required")
	}
	if err := validateRecord(e.Collection, e.ID, e.Data); err != nil {
		return err
	}

	_, err := r.db.GetRecord(ctx, e.Collection, e.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if !exists && e.Collection == schema.CollectionSavedWorkouts {
		n, err := r.db.CountRecords(ctx, e.Collection)
		if err != nil {
			return err
		}
		if n >= schema.MaxSavedWorkouts {
			return fmt.Errorf("saved workout limit of %d reached", schema.MaxSavedWorkouts)
		}
	}

	r.result.Records++
	if r.dryRun {
		return nil
	}

	if err := r.db.UpsertRecord(ctx, &db.Record{
		Collection: e.Collection,
		ID:         e.ID,
		Data:       e.Data,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}); err != nil {
		return err
	}
	restored, err := r.db.GetRecord(ctx, e.Collection, e.ID)
	if err != nil {
		return err
	}
	r.versions[e.ID] = versionPair{exported: e.Version, restored: restored.Version}
	return nil
}

// validateRecord applies the schema checks of known collections and makes
// sure the id matches the document. Other collections only need an object.
func validateRecord(collection, id string, data []byte) error {
	switch collection {
	case schema.CollectionSavedWorkouts:
		var w schema.SavedWorkout
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		if err := w.Validate(); err != nil {
			return err
		}
		return matchID(id, w.ID.String())
	case schema.CollectionSessions:
		var s schema.WorkoutSession
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		return matchID(id, s.ID.String())
	case schema.CollectionCalendar:
		var m schema.CalendarMarker
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
		day, _ := calendar.Parse(m.Date)
		return matchID(id, schema.MarkerKey(m.UserID, day))
	default:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
			return fmt.Errorf("data must be a JSON object")
		}
		return nil
	}
}

func matchID(id, fromDoc string) error {
	if id != fromDoc {
		return fmt.Errorf("id %q does not match document id %q", id, fromDoc)
	}
	return nil
}

func (r *restorer) restDay(ctx context.Context, e *Entry) error {
	if _, err := calendar.Parse(e.LoggedFor); err != nil {
		return err
	}
	entry, data, err := canonicalRestDay(e.Data)
	if err != nil {
		return err
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	key := restKey(e.LoggedFor, data)
	if r.restLog[key] {
		r.result.Skipped++
		return nil
	}
	r.restLog[key] = true

	r.result.RestDays++
	if r.dryRun {
		return nil
	}
	_, err = r.db.AppendRestDay(ctx, e.LoggedFor, data, e.CreatedAt)
	return err
}

func (r *restorer) binding(ctx context.Context, e *Entry) error {
	local, err := schema.ParseID(e.LocalID)
	if err != nil {
		return err
	}
	if e.DatabaseID == "" {
		return fmt.Errorf("database_id is required")
	}
	remote := schema.RemoteID(e.DatabaseID)

	if r.dryRun {
		existing, err := r.mapper.Resolve(ctx, local)
		switch {
		case err == nil && existing != remote:
			r.result.Conflicts++
			return fmt.Errorf("bound to %s, backup has %s", existing, remote)
		case err != nil && !errors.Is(err, identity.ErrUnresolved):
			return err
		}
		r.result.Bindings++
		return nil
	}

	if err := r.mapper.Bind(ctx, local, remote); err != nil {
		if identity.IsConflict(err) {
			r.result.Conflicts++
		}
		return err
	}
	r.result.Bindings++

	// Carry the pushed state over only when the record was clean at export
	// time; otherwise it stays dirty and the next sync sends it.
	v, ok := r.versions[e.LocalID]
	if ok && e.PushedVersion > 0 && e.PushedVersion >= v.exported {
		return r.mapper.MarkPushed(ctx, local, v.restored)
	}
	return nil
}

func (r *restorer) value(ctx context.Context, e *Entry) error {
	if e.Key == "" {
		return fmt.Errorf("key is required")
	}
	r.result.Values++
	if r.dryRun {
		return nil
	}
	return r.db.SetValue(ctx, e.Key, e.Value)
}
