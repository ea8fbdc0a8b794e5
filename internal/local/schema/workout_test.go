package schema

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func exercises(n int) []ExerciseEntry {
	out := make([]ExerciseEntry, n)
	for i := range out {
		out[i] = ExerciseEntry{Name: "Squat", Sets: 3, Reps: 10}
	}
	return out
}

func TestSavedWorkout_Validate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		workout SavedWorkout
		wantErr error
		errMsg  string
	}{
		{
			name: "valid workout",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				Name:      "Leg day",
				Emoji:     "🦵",
				Exercises: exercises(3),
				CreatedAt: now,
			},
		},
		{
			name: "exactly the exercise limit",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				Name:      "Marathon",
				Exercises: exercises(MaxExercises),
				CreatedAt: now,
			},
		},
		{
			name: "one exercise over the limit",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				Name:      "Too much",
				Exercises: exercises(MaxExercises + 1),
				CreatedAt: now,
			},
			wantErr: ErrTooManyExercises,
		},
		{
			name: "missing id",
			workout: SavedWorkout{
				Name:      "Leg day",
				CreatedAt: now,
			},
			wantErr: ErrInvalid,
			errMsg:  "id is required",
		},
		{
			name: "remote id",
			workout: SavedWorkout{
				ID:        RemoteID("42"),
				Name:      "Leg day",
				CreatedAt: now,
			},
			wantErr: ErrInvalid,
			errMsg:  "must be local",
		},
		{
			name: "missing name",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				CreatedAt: now,
			},
			wantErr: ErrInvalid,
			errMsg:  "name is required",
		},
		{
			name: "name too long",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				Name:      strings.Repeat("x", MaxWorkoutNameLen+1),
				CreatedAt: now,
			},
			wantErr: ErrInvalid,
			errMsg:  "characters or less",
		},
		{
			name: "exercise without name",
			workout: SavedWorkout{
				ID:        NewLocalID(),
				Name:      "Leg day",
				Exercises: []ExerciseEntry{{Sets: 3, Reps: 5}},
				CreatedAt: now,
			},
			wantErr: ErrInvalid,
			errMsg:  "exercise name is required",
		},
		{
			name: "missing created_at",
			workout: SavedWorkout{
				ID:   NewLocalID(),
				Name: "Leg day",
			},
			wantErr: ErrInvalid,
			errMsg:  "created_at is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.workout.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestSavedWorkout_SetDefaults(t *testing.T) {
	now := time.Date(2026, 1, 10, 7, 0, 0, 0, time.UTC)
	w := &SavedWorkout{Name: "Pull day"}
	w.SetDefaults(now)

	if !w.ID.IsLocal() {
		t.Errorf("ID = %v, want a local id", w.ID)
	}
	if w.Emoji != DefaultWorkoutEmoji {
		t.Errorf("Emoji = %q, want %q", w.Emoji, DefaultWorkoutEmoji)
	}
	if w.Exercises == nil {
		t.Error("Exercises should be initialized to an empty slice")
	}
	if !w.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", w.CreatedAt, now)
	}
}

func TestID_TextForm(t *testing.T) {
	local := LocalID("abc")
	if local.String() != "local:abc" {
		t.Errorf("String() = %q, want local:abc", local.String())
	}

	parsed, err := ParseID("remote:8812")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	if !parsed.IsRemote() || parsed.Value != "8812" {
		t.Errorf("ParseID = %+v, want remote 8812", parsed)
	}

	for _, bad := range []string{"8812", "abc-123", "server:1", "local:"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) expected error", bad)
		}
	}
}

func TestID_JSON(t *testing.T) {
	w := SavedWorkout{ID: LocalID("abc"), Name: "x"}
	data, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"id":"local:abc"`) {
		t.Errorf("marshaled = %s, want tagged id", data)
	}

	var back SavedWorkout
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.ID != w.ID {
		t.Errorf("ID = %v, want %v", back.ID, w.ID)
	}
}

func TestWriteAndReadSessionFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 1, 10, 7, 0, 0, 0, time.UTC)
	session := &WorkoutSession{
		ID:          NewLocalID(),
		Name:        "Push day",
		Exercises:   exercises(2),
		StartedAt:   start,
		CompletedAt: start.Add(65 * time.Minute),
	}
	session.SetDefaults(start)

	if session.DurationSeconds != 65*60 {
		t.Errorf("DurationSeconds = %d, want %d", session.DurationSeconds, 65*60)
	}

	if err := WriteSessionFile(dir, session); err != nil {
		t.Fatalf("WriteSessionFile failed: %v", err)
	}

	path := filepath.Join(dir, session.Filename())
	read, err := ReadSessionFile(path, start)
	if err != nil {
		t.Fatalf("ReadSessionFile failed: %v", err)
	}
	if read.ID != session.ID || read.Name != session.Name {
		t.Errorf("read = %+v, want %+v", read, session)
	}
}

func TestReadSessionFile_MintsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watch-export.json")
	body := `{"name": "Run", "completed_at": "2026-01-10T08:00:00Z"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	session, err := ReadSessionFile(path, time.Now())
	if err != nil {
		t.Fatalf("ReadSessionFile failed: %v", err)
	}
	if !session.ID.IsLocal() {
		t.Errorf("ID = %v, want minted local id", session.ID)
	}
}

func TestReadSessionFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"name": ""}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := ReadSessionFile(path, time.Now()); err == nil {
		t.Error("ReadSessionFile expected error for session without name")
	}
}

func TestCalendarMarker_MergeNeverDowngrades(t *testing.T) {
	trained := &CalendarMarker{UserID: "u1", Date: "2026-01-10", Kind: MarkerTrained}
	rested := &CalendarMarker{UserID: "u1", Date: "2026-01-10", Kind: MarkerRested, FreeDay: true}

	merged := trained.Merge(rested)
	if merged.Kind != MarkerTrained {
		t.Errorf("Kind = %s, want trained", merged.Kind)
	}

	merged = rested.Merge(trained)
	if merged.Kind != MarkerTrained {
		t.Errorf("Kind = %s, want trained", merged.Kind)
	}
	if !merged.Qualifies() {
		t.Error("merged marker should qualify")
	}
}

func TestCalendarMarker_Qualifies(t *testing.T) {
	tests := []struct {
		marker CalendarMarker
		want   bool
	}{
		{CalendarMarker{Kind: MarkerTrained}, true},
		{CalendarMarker{Kind: MarkerRested, FreeDay: true}, true},
		{CalendarMarker{Kind: MarkerRested}, false},
	}
	for _, tt := range tests {
		if got := tt.marker.Qualifies(); got != tt.want {
			t.Errorf("%+v Qualifies() = %v, want %v", tt.marker, got, tt.want)
		}
	}
}

func TestReadTemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	body := `
[[workout]]
name = "Leg day"
emoji = "🦵"
type = "strength"

  [[workout.exercise]]
  name = "Squat"
  sets = 5
  reps = 5
  weight = 100.0

  [[workout.exercise]]
  name = "Lunge"
  sets = 3
  reps = 12

[[workout]]
name = "Mobility"
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	tf, err := ReadTemplateFile(path)
	if err != nil {
		t.Fatalf("ReadTemplateFile failed: %v", err)
	}
	if len(tf.Workouts) != 2 {
		t.Fatalf("expected 2 workouts, got %d", len(tf.Workouts))
	}
	if len(tf.Workouts[0].Exercises) != 2 {
		t.Errorf("expected 2 exercises, got %d", len(tf.Workouts[0].Exercises))
	}

	w, err := tf.Workouts[1].ToSavedWorkout(time.Now())
	if err != nil {
		t.Fatalf("ToSavedWorkout failed: %v", err)
	}
	if w.Emoji != DefaultWorkoutEmoji {
		t.Errorf("Emoji = %q, want default", w.Emoji)
	}
}

func TestReadTemplateFile_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte("[[workout]]\nname = \"x\"\nemojii = \"y\"\n"), 0644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	if _, err := ReadTemplateFile(path); err == nil {
		t.Error("expected error for unknown key")
	}
}
