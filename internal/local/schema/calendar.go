package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/liftlog/repsync/internal/local/calendar"
)

// MarkerKind distinguishes trained days from rested days.
type MarkerKind string

const (
	MarkerTrained MarkerKind = "trained"
	MarkerRested  MarkerKind = "rested"
)

// CalendarMarker records what the user did on one local calendar day.
// There is one marker per user per day; the store keys it by MarkerKey.
type CalendarMarker struct {
	UserID  string     `json:"user_id"`
	Date    string     `json:"date"` // YYYY-MM-DD, local calendar
	Kind    MarkerKind `json:"kind"`
	FreeDay bool       `json:"free_day,omitempty"`
}

// MarkerKey returns the record id for a user's marker on day.
func MarkerKey(userID string, day calendar.Day) string {
	return userID + "/" + day.String()
}

// Validate checks if the CalendarMarker has valid field values.
func (m *CalendarMarker) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if strings.Contains(m.UserID, "/") {
		return fmt.Errorf("%w: user_id must not contain '/'", ErrInvalid)
	}
	if _, err := calendar.Parse(m.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch m.Kind {
	case MarkerTrained, MarkerRested:
	default:
		return fmt.Errorf("%w: unknown marker kind %q", ErrInvalid, m.Kind)
	}
	return nil
}

// Qualifies reports whether the day extends a streak: trained days always
// do, rested days only when the free rest day covered them.
func (m *CalendarMarker) Qualifies() bool {
	switch m.Kind {
	case MarkerTrained:
		return true
	case MarkerRested:
		return m.FreeDay
	default:
		return false
	}
}

// Merge combines an existing marker for the same day with an incoming one.
// Trained is never downgraded to rested, and a free-day flag once set stays.
func (m *CalendarMarker) Merge(incoming *CalendarMarker) *CalendarMarker {
	out := *m
	if incoming.Kind == MarkerTrained {
		out.Kind = MarkerTrained
	}
	out.FreeDay = m.FreeDay || incoming.FreeDay
	return &out
}

// RestDayCompletion is one entry of the append-only rest-day log.
type RestDayCompletion struct {
	Date       time.Time `json:"date" yaml:"date"`
	Activities []string  `json:"activities" yaml:"activities"`
	Caption    string    `json:"caption" yaml:"caption"`
}

// Validate checks if the RestDayCompletion has valid field values.
func (r *RestDayCompletion) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}
	for _, a := range r.Activities {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: empty activity", ErrInvalid)
		}
	}
	return nil
}
