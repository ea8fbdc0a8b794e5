package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/schema"
)

// CreateSavedWorkout stores a new saved workout.
// Defaults (id, emoji, created_at) are filled in.
func (s *Store) CreateSavedWorkout(ctx context.Context, w *schema.SavedWorkout) (*schema.SavedWorkout, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode saved workout: %w", err)
	}
	rec, err := s.Create(ctx, schema.CollectionSavedWorkouts, data)
	if err != nil {
		return nil, err
	}
	var out schema.SavedWorkout
	if err := rec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WorkoutPatch is a partial update of a saved workout. Nil fields are left
// unchanged.
type WorkoutPatch struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Emoji       *string                `json:"emoji,omitempty"`
	WorkoutType *string                `json:"workout_type,omitempty"`
	Exercises   []schema.ExerciseEntry `json:"exercises,omitempty"`
}

// UpdateSavedWorkout applies patch to a saved workout. A patch that changes
// exercises is re-validated against MaxExercises.
func (s *Store) UpdateSavedWorkout(ctx context.Context, id schema.ID, patch WorkoutPatch) (*schema.SavedWorkout, error) {
	data, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	rec, err := s.Update(ctx, schema.CollectionSavedWorkouts, id.String(), data)
	if err != nil {
		return nil, err
	}
	var out schema.SavedWorkout
	if err := rec.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SavedWorkout returns one saved workout.
func (s *Store) SavedWorkout(ctx context.Context, id schema.ID) (*schema.SavedWorkout, error) {
	rec, err := s.Get(ctx, schema.CollectionSavedWorkouts, id.String())
	if err != nil {
		return nil, err
	}
	var w schema.SavedWorkout
	if err := rec.Decode(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// SavedWorkouts returns all saved workouts, oldest first.
func (s *Store) SavedWorkouts(ctx context.Context) ([]*schema.SavedWorkout, error) {
	recs, err := s.List(ctx, schema.CollectionSavedWorkouts)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.SavedWorkout, 0, len(recs))
	for _, rec := range recs {
		var w schema.SavedWorkout
		if err := rec.Decode(&w); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, nil
}

// CompleteSession stores a finished workout session and marks its
// completion day as trained for userID.
func (s *Store) CompleteSession(ctx context.Context, userID string, sess *schema.WorkoutSession) (*schema.WorkoutSession, error) {
	sess.SetDefaults(s.clock.Now())
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.create(ctx, schema.CollectionSessions, data)
	if err != nil {
		return nil, err
	}
	var out schema.WorkoutSession
	if err := rec.Decode(&out); err != nil {
		return nil, err
	}

	day := calendar.Of(out.CompletedAt, s.loc)
	if _, err := s.markDay(ctx, &schema.CalendarMarker{
		UserID: userID,
		Date:   day.String(),
		Kind:   schema.MarkerTrained,
	}); err != nil {
		return nil, fmt.Errorf("session %s stored but marking %s failed: %w", out.ID, day, err)
	}
	return &out, nil
}

// Session returns one workout session.
func (s *Store) Session(ctx context.Context, id schema.ID) (*schema.WorkoutSession, error) {
	rec, err := s.Get(ctx, schema.CollectionSessions, id.String())
	if err != nil {
		return nil, err
	}
	var sess schema.WorkoutSession
	if err := rec.Decode(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Sessions returns all workout sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]*schema.WorkoutSession, error) {
	recs, err := s.List(ctx, schema.CollectionSessions)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.WorkoutSession, 0, len(recs))
	for _, rec := range recs {
		var sess schema.WorkoutSession
		if err := rec.Decode(&sess); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, nil
}

// LogRestDay appends entry to the rest-day log and marks its day as rested.
// freeDay records that the weekly free rest day covers it.
func (s *Store) LogRestDay(ctx context.Context, userID string, entry *schema.RestDayCompletion, freeDay bool) (*schema.CalendarMarker, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rest day: %w", err)
	}
	day := calendar.Of(entry.Date, s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.AppendRestDay(ctx, day.String(), data, s.clock.Now()); err != nil {
		return nil, err
	}
	return s.markDay(ctx, &schema.CalendarMarker{
		UserID:  userID,
		Date:    day.String(),
		Kind:    schema.MarkerRested,
		FreeDay: freeDay,
	})
}

// RestDays returns the rest-day log, oldest first.
func (s *Store) RestDays(ctx context.Context) ([]*schema.RestDayCompletion, error) {
	entries, err := s.db.ListRestDays(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*schema.RestDayCompletion, 0, len(entries))
	for _, e := range entries {
		var r schema.RestDayCompletion
		if err := json.Unmarshal(e.Data, &r); err != nil {
			return nil, fmt.Errorf("failed to decode rest day %d: %w", e.Seq, err)
		}
		out = append(out, &r)
	}
	return out, nil
}

// MarkDay writes a calendar marker, merging with any marker already stored
// for that user and day. Re-marking a day is idempotent and a trained day is
// never downgraded.
func (s *Store) MarkDay(ctx context.Context, m *schema.CalendarMarker) (*schema.CalendarMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markDay(ctx, m)
}

func (s *Store) markDay(ctx context.Context, m *schema.CalendarMarker) (*schema.CalendarMarker, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	day, _ := calendar.Parse(m.Date)
	key := schema.MarkerKey(m.UserID, day)

	rec, err := s.Get(ctx, schema.CollectionCalendar, key)
	if errors.Is(err, ErrNotFound) {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode marker: %w", err)
		}
		if _, err := s.create(ctx, schema.CollectionCalendar, data); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err != nil {
		return nil, err
	}

	var existing schema.CalendarMarker
	if err := rec.Decode(&existing); err != nil {
		return nil, err
	}
	merged := existing.Merge(m)
	if *merged == existing {
		return merged, nil
	}
	return s.writeMarker(ctx, key, merged)
}

// ClearFreeDay removes the free-day flag from a rested day. Trained days and
// unmarked days are left alone.
func (s *Store) ClearFreeDay(ctx context.Context, userID string, day calendar.Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := schema.MarkerKey(userID, day)
	rec, err := s.Get(ctx, schema.CollectionCalendar, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var m schema.CalendarMarker
	if err := rec.Decode(&m); err != nil {
		return err
	}
	if m.Kind != schema.MarkerRested || !m.FreeDay {
		return nil
	}
	m.FreeDay = false
	_, err = s.writeMarker(ctx, key, &m)
	return err
}

func (s *Store) writeMarker(ctx context.Context, key string, m *schema.CalendarMarker) (*schema.CalendarMarker, error) {
	// A null free_day removes the key.
	partial := map[string]any{"kind": m.Kind, "free_day": nil}
	if m.FreeDay {
		partial["free_day"] = true
	}
	data, err := json.Marshal(partial)
	if err != nil {
		return nil, fmt.Errorf("failed to encode marker: %w", err)
	}
	if _, err := s.update(ctx, schema.CollectionCalendar, key, data); err != nil {
		return nil, err
	}
	return m, nil
}

// Markers returns every calendar marker of userID keyed by day.
func (s *Store) Markers(ctx context.Context, userID string) (map[calendar.Day]*schema.CalendarMarker, error) {
	recs, err := s.List(ctx, schema.CollectionCalendar)
	if err != nil {
		return nil, err
	}
	out := make(map[calendar.Day]*schema.CalendarMarker)
	for _, rec := range recs {
		var m schema.CalendarMarker
		if err := rec.Decode(&m); err != nil {
			return nil, err
		}
		if m.UserID != userID {
			continue
		}
		day, err := calendar.Parse(m.Date)
		if err != nil {
			s.logger.Printf("WARNING: skipping marker %s with bad date: %v", rec.ID, err)
			continue
		}
		out[day] = &m
	}
	return out, nil
}
