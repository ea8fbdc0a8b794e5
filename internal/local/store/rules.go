package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/schema"
)

// rule is the write policy of one collection.
type rule struct {
	// limit caps the number of records; 0 means unlimited.
	limit int

	// normalize applies defaults, validates, and returns the record id and
	// canonical document.
	normalize func(data []byte, now time.Time) (string, []byte, error)
}

func ruleFor(collection string) rule {
	switch collection {
	case schema.CollectionSavedWorkouts:
		return rule{limit: schema.MaxSavedWorkouts, normalize: normalizeSavedWorkout}
	case schema.CollectionSessions:
		return rule{normalize: normalizeSession}
	case schema.CollectionCalendar:
		return rule{normalize: normalizeMarker}
	default:
		return rule{normalize: normalizeObject}
	}
}

func normalizeSavedWorkout(data []byte, now time.Time) (string, []byte, error) {
	var w schema.SavedWorkout
	if err := json.Unmarshal(data, &w); err != nil {
		return "", nil, fmt.Errorf("%w: %v", schema.ErrInvalid, err)
	}
	w.SetDefaults(now)
	if err := w.Validate(); err != nil {
		return "", nil, err
	}
	doc, err := json.Marshal(&w)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode saved workout: %w", err)
	}
	return w.ID.String(), doc, nil
}

func normalizeSession(data []byte, now time.Time) (string, []byte, error) {
	var sess schema.WorkoutSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return "", nil, fmt.Errorf("%w: %v", schema.ErrInvalid, err)
	}
	sess.SetDefaults(now)
	if err := sess.Validate(); err != nil {
		return "", nil, err
	}
	doc, err := json.Marshal(&sess)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return sess.ID.String(), doc, nil
}

func normalizeMarker(data []byte, _ time.Time) (string, []byte, error) {
	var m schema.CalendarMarker
	if err := json.Unmarshal(data, &m); err != nil {
		return "", nil, fmt.Errorf("%w: %v", schema.ErrInvalid, err)
	}
	if err := m.Validate(); err != nil {
		return "", nil, err
	}
	day, _ := calendar.Parse(m.Date)
	doc, err := json.Marshal(&m)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode marker: %w", err)
	}
	return schema.MarkerKey(m.UserID, day), doc, nil
}

// normalizeObject accepts any JSON object, minting a local id when the
// document has none.
func normalizeObject(data []byte, _ time.Time) (string, []byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return "", nil, ErrNotObject
	}

	var id string
	if raw, ok := doc["id"]; ok {
		if err := json.Unmarshal(raw, &id); err != nil || id == "" {
			return "", nil, fmt.Errorf("%w: id must be a non-empty string", schema.ErrInvalid)
		}
	} else {
		id = schema.NewLocalID().String()
		doc["id"], _ = json.Marshal(id)
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return id, out, nil
}
