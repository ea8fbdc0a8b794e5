package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/liftlog/repsync/internal/local/schema"
)

// parseExercise parses "Name: SETSxREPS[@WEIGHT]", e.g. "Squat: 5x5@100".
// The sets/reps part is optional: "Plank" is a single entry with no count.
func parseExercise(s string) (schema.ExerciseEntry, error) {
	name, count, hasCount := strings.Cut(s, ":")
	e := schema.ExerciseEntry{Name: strings.TrimSpace(name)}
	if e.Name == "" {
		return e, fmt.Errorf("exercise %q has no name", s)
	}
	if !hasCount {
		return e, nil
	}

	count = strings.TrimSpace(count)
	if at := strings.Index(count, "@"); at >= 0 {
		w, err := strconv.ParseFloat(strings.TrimSpace(count[at+1:]), 64)
		if err != nil {
			return e, fmt.Errorf("exercise %q: invalid weight: %w", s, err)
		}
		e.Weight = w
		count = count[:at]
	}

	sets, reps, ok := strings.Cut(strings.ToLower(strings.TrimSpace(count)), "x")
	if !ok {
		return e, fmt.Errorf("exercise %q: expected SETSxREPS", s)
	}
	var err error
	if e.Sets, err = strconv.Atoi(strings.TrimSpace(sets)); err != nil {
		return e, fmt.Errorf("exercise %q: invalid sets: %w", s, err)
	}
	if e.Reps, err = strconv.Atoi(strings.TrimSpace(reps)); err != nil {
		return e, fmt.Errorf("exercise %q: invalid reps: %w", s, err)
	}
	return e, e.Validate()
}

// parseExercises parses one exercise per non-empty line.
func parseExercises(lines []string) ([]schema.ExerciseEntry, error) {
	out := make([]schema.ExerciseEntry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := parseExercise(line)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func formatExercise(e schema.ExerciseEntry) string {
	s := e.Name
	if e.Sets > 0 || e.Reps > 0 {
		s += fmt.Sprintf(" %dx%d", e.Sets, e.Reps)
	}
	if e.Weight > 0 {
		s += "@" + strconv.FormatFloat(e.Weight, 'f', -1, 64)
	}
	return s
}
