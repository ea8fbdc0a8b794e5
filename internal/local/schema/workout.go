package schema

import (
	"errors"
	"fmt"
	"time"
)

// Collection names.
const (
	CollectionSavedWorkouts = "saved_workouts"
	CollectionSessions      = "sessions"
	CollectionCalendar      = "calendar"
)

// Limits enforced on saved workouts.
const (
	MaxSavedWorkouts    = 10
	MaxExercises        = 20
	MaxWorkoutNameLen   = 100
	DefaultWorkoutEmoji = "💪"
)

var (
	// ErrTooManyExercises is returned when a workout carries more than
	// MaxExercises entries.
	ErrTooManyExercises = errors.New("too many exercises")

	// ErrInvalid wraps every other validation failure.
	ErrInvalid = errors.New("invalid record")
)

// ExerciseEntry is one exercise inside a workout or session.
type ExerciseEntry struct {
	Name            string  `json:"name" toml:"name" yaml:"name"`
	Sets            int     `json:"sets" toml:"sets" yaml:"sets"`
	Reps            int     `json:"reps" toml:"reps" yaml:"reps"`
	Weight          float64 `json:"weight,omitempty" toml:"weight" yaml:"weight,omitempty"`
	DurationSeconds int     `json:"duration_seconds,omitempty" toml:"duration_seconds" yaml:"duration_seconds,omitempty"`
	Notes           string  `json:"notes,omitempty" toml:"notes" yaml:"notes,omitempty"`
}

// Validate checks a single exercise entry.
func (e *ExerciseEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: exercise name is required", ErrInvalid)
	}
	if e.Sets < 0 || e.Reps < 0 {
		return fmt.Errorf("%w: exercise %q has negative sets or reps", ErrInvalid, e.Name)
	}
	if e.DurationSeconds < 0 {
		return fmt.Errorf("%w: exercise %q has negative duration", ErrInvalid, e.Name)
	}
	return nil
}

// SavedWorkout is a user-defined workout template.
// At most MaxSavedWorkouts exist per user; the store enforces the count.
type SavedWorkout struct {
	ID          ID              `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Emoji       string          `json:"emoji"`
	WorkoutType string          `json:"workout_type,omitempty"`
	Exercises   []ExerciseEntry `json:"exercises"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Validate checks if the SavedWorkout has valid field values.
// An exercise list longer than MaxExercises yields ErrTooManyExercises.
func (w *SavedWorkout) Validate() error {
	if w.ID.IsZero() {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if !w.ID.IsLocal() {
		return fmt.Errorf("%w: saved workout id must be local, got %s", ErrInvalid, w.ID)
	}
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(w.Name) > MaxWorkoutNameLen {
		return fmt.Errorf("%w: name must be %d characters or less (got %d)", ErrInvalid, MaxWorkoutNameLen, len(w.Name))
	}
	if err := ValidateExercises(w.Exercises); err != nil {
		return err
	}
	if w.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrInvalid)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (w *SavedWorkout) SetDefaults(now time.Time) {
	if w.ID.IsZero() {
		w.ID = NewLocalID()
	}
	if w.Emoji == "" {
		w.Emoji = DefaultWorkoutEmoji
	}
	if w.Exercises == nil {
		w.Exercises = []ExerciseEntry{}
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
}

// ValidateExercises enforces the per-workout exercise bound and checks
// every entry.
func ValidateExercises(exercises []ExerciseEntry) error {
	if len(exercises) > MaxExercises {
		return fmt.Errorf("%w: %d exercises exceeds limit of %d", ErrTooManyExercises, len(exercises), MaxExercises)
	}
	for i := range exercises {
		if err := exercises[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
