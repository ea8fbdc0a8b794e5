package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WorkoutSession is a completed workout. It is created locally and pushed to
// the remote; once pushed the identity mapper holds its database id.
type WorkoutSession struct {
	ID              ID              `json:"id"`
	SavedWorkoutID  *ID             `json:"saved_workout_id,omitempty"`
	Name            string          `json:"name"`
	Exercises       []ExerciseEntry `json:"exercises"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
	DurationSeconds int             `json:"duration_seconds"`
	Notes           string          `json:"notes,omitempty"`
}

// Validate checks if the WorkoutSession has valid field values.
func (s *WorkoutSession) Validate() error {
	if s.ID.IsZero() {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if !s.ID.IsLocal() {
		return fmt.Errorf("%w: session id must be local, got %s", ErrInvalid, s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	for i := range s.Exercises {
		if err := s.Exercises[i].Validate(); err != nil {
			return err
		}
	}
	if s.CompletedAt.IsZero() {
		return fmt.Errorf("%w: completed_at is required", ErrInvalid)
	}
	if !s.StartedAt.IsZero() && s.CompletedAt.Before(s.StartedAt) {
		return fmt.Errorf("%w: completed_at is before started_at", ErrInvalid)
	}
	if s.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration_seconds must not be negative", ErrInvalid)
	}
	return nil
}

// SetDefaults applies default values for optional fields.
func (s *WorkoutSession) SetDefaults(now time.Time) {
	if s.ID.IsZero() {
		s.ID = NewLocalID()
	}
	if s.Exercises == nil {
		s.Exercises = []ExerciseEntry{}
	}
	if s.CompletedAt.IsZero() {
		s.CompletedAt = now
	}
	if s.DurationSeconds == 0 && !s.StartedAt.IsZero() {
		s.DurationSeconds = int(s.CompletedAt.Sub(s.StartedAt).Seconds())
	}
}

// Filename returns the canonical filename for this session: {uuid}.json
func (s *WorkoutSession) Filename() string {
	return fmt.Sprintf("%s.json", s.ID.Value)
}

// ReadSessionFile reads and parses a session JSON file from the given path.
// Defaults are applied before validation so companion devices may omit the
// id and duration.
func ReadSessionFile(path string, now time.Time) (*WorkoutSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}

	var session WorkoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}

	session.SetDefaults(now)
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session file %s: %w", path, err)
	}

	return &session, nil
}

// WriteSessionFile writes a session to dir/{uuid}.json atomically.
func WriteSessionFile(dir string, session *WorkoutSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid session: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.ID, err)
	}

	path := filepath.Join(dir, session.Filename())
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// IsSessionFile reports whether name looks like an importable session file.
// Temp files written by WriteSessionFile are ignored.
func IsSessionFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(filepath.Base(name), ".")
}
