// Package derived computes state that is a pure function of the local
// record store: the training streak and the weekly free rest day.
//
// Nothing here touches the network, so results are correct offline and
// reflect a local write immediately.
package derived

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/local/store"
)

// FreeRestDayKey is the scalar holding the last free rest day (YYYY-MM-DD).
const FreeRestDayKey = "free_rest_day.last_used"

// ErrFreeRestDayUsed is returned by ConsumeFreeRestDay when this week's free
// rest day is already taken.
var ErrFreeRestDayUsed = errors.New("free rest day already used this week")

// Calculator derives streak and quota state from a store.
type Calculator struct {
	store *store.Store
	clock clockwork.Clock
	loc   *time.Location
}

// New creates a calculator. A nil clock uses the real clock and a nil
// location uses the store's location.
func New(st *store.Store, clock clockwork.Clock, loc *time.Location) *Calculator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = st.Location()
	}
	return &Calculator{store: st, clock: clock, loc: loc}
}

// Today returns the current local calendar day.
func (c *Calculator) Today() calendar.Day {
	return calendar.Of(c.clock.Now(), c.loc)
}

// CurrentStreak counts consecutive qualifying days ending at the most
// recent day. A trained day or a rested day covered by the free rest day
// qualifies; any other day breaks the streak.
//
// Today is still open: if it has no qualifying marker yet the count starts
// from yesterday instead of dropping to zero.
func (c *Calculator) CurrentStreak(ctx context.Context, userID string) (int, error) {
	markers, err := c.store.Markers(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load markers: %w", err)
	}
	return streak(markers, c.Today()), nil
}

func streak(markers map[calendar.Day]*schema.CalendarMarker, today calendar.Day) int {
	qualifies := func(d calendar.Day) bool {
		m, ok := markers[d]
		return ok && m.Qualifies()
	}

	day := today
	if !qualifies(day) {
		day = day.AddDays(-1)
	}

	n := 0
	for qualifies(day) {
		n++
		day = day.AddDays(-1)
	}
	return n
}

// IsFreeRestDayAvailable reports whether the free rest day is unused this
// week. Weeks start Sunday 00:00 local time.
func (c *Calculator) IsFreeRestDayAvailable(ctx context.Context) (bool, error) {
	last, ok, err := c.lastFreeRestDay(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return last.WeekStart().Before(c.Today().WeekStart()), nil
}

// ConsumeFreeRestDay records today as this week's free rest day.
func (c *Calculator) ConsumeFreeRestDay(ctx context.Context) (calendar.Day, error) {
	available, err := c.IsFreeRestDayAvailable(ctx)
	if err != nil {
		return calendar.Day{}, err
	}
	if !available {
		return calendar.Day{}, ErrFreeRestDayUsed
	}

	today := c.Today()
	if err := c.store.SetValue(ctx, FreeRestDayKey, today.String()); err != nil {
		return calendar.Day{}, fmt.Errorf("failed to record free rest day: %w", err)
	}
	return today, nil
}

// RevokeFreeRestDayIfUsedToday clears the usage only when it was recorded
// today, so an undo never wipes an earlier week's usage. Reports whether a
// usage was cleared.
func (c *Calculator) RevokeFreeRestDayIfUsedToday(ctx context.Context) (bool, error) {
	revoked, err := c.store.DeleteValueIf(ctx, FreeRestDayKey, c.Today().String())
	if err != nil {
		return false, fmt.Errorf("failed to revoke free rest day: %w", err)
	}
	return revoked, nil
}

// LastFreeRestDay returns the stored usage day, if any.
func (c *Calculator) LastFreeRestDay(ctx context.Context) (calendar.Day, bool, error) {
	return c.lastFreeRestDay(ctx)
}

func (c *Calculator) lastFreeRestDay(ctx context.Context) (calendar.Day, bool, error) {
	value, ok, err := c.store.GetValue(ctx, FreeRestDayKey)
	if err != nil || !ok {
		return calendar.Day{}, false, err
	}
	day, err := calendar.Parse(value)
	if err != nil {
		// Unparseable usage counts as unset.
		return calendar.Day{}, false, nil
	}
	return day, true, nil
}

// DayStatus is one day of a weekly summary.
type DayStatus struct {
	Day    calendar.Day
	Marker *schema.CalendarMarker // nil when nothing was logged
	Future bool
}

// WeekSummary is the current week at a glance.
type WeekSummary struct {
	Days              [7]DayStatus
	Trained           int
	Rested            int
	FreeRestDayUsed   bool
	FreeRestDayUsedOn calendar.Day
	Streak            int
}

// WeeklySummary reports each day of the current week (Sunday first).
func (c *Calculator) WeeklySummary(ctx context.Context, userID string) (*WeekSummary, error) {
	markers, err := c.store.Markers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load markers: %w", err)
	}

	today := c.Today()
	start := today.WeekStart()
	sum := &WeekSummary{Streak: streak(markers, today)}
	for i := range sum.Days {
		day := start.AddDays(i)
		m := markers[day]
		sum.Days[i] = DayStatus{Day: day, Marker: m, Future: today.Before(day)}
		if m == nil {
			continue
		}
		switch m.Kind {
		case schema.MarkerTrained:
			sum.Trained++
		case schema.MarkerRested:
			sum.Rested++
		}
	}

	last, ok, err := c.lastFreeRestDay(ctx)
	if err != nil {
		return nil, err
	}
	if ok && calendar.SameWeek(last, today) {
		sum.FreeRestDayUsed = true
		sum.FreeRestDayUsedOn = last
	}
	return sum, nil
}
