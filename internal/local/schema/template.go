package schema

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// TemplateFile is the TOML format accepted by `repsync workout import`.
//
//	[[workout]]
//	name = "Leg day"
//	emoji = "🦵"
//	type = "strength"
//
//	  [[workout.exercise]]
//	  name = "Squat"
//	  sets = 5
//	  reps = 5
//	  weight = 100.0
type TemplateFile struct {
	Workouts []WorkoutTemplate `toml:"workout"`
}

// WorkoutTemplate is one [[workout]] table.
type WorkoutTemplate struct {
	Name        string          `toml:"name"`
	Description string          `toml:"description"`
	Emoji       string          `toml:"emoji"`
	Type        string          `toml:"type"`
	Exercises   []ExerciseEntry `toml:"exercise"`
}

// ToSavedWorkout converts the template into a new SavedWorkout with a fresh
// local id. The result is validated.
func (t *WorkoutTemplate) ToSavedWorkout(now time.Time) (*SavedWorkout, error) {
	w := &SavedWorkout{
		Name:        t.Name,
		Description: t.Description,
		Emoji:       t.Emoji,
		WorkoutType: t.Type,
		Exercises:   t.Exercises,
	}
	w.SetDefaults(now)
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// ReadTemplateFile parses a TOML workout template file.
// Unknown keys are rejected so typos do not silently drop data.
func ReadTemplateFile(path string) (*TemplateFile, error) {
	var tf TemplateFile
	md, err := toml.DecodeFile(path, &tf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("template file %s has unknown keys: %v", path, undecoded)
	}
	if len(tf.Workouts) == 0 {
		return nil, fmt.Errorf("template file %s defines no workouts", path)
	}
	return &tf, nil
}
