package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	d, err := Parse("2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, Day{Year: 2024, Month: time.March, Dom: 9}, d)
	assert.Equal(t, "2024-03-09", d.String())

	_, err = Parse("03/09/2024")
	assert.Error(t, err)
}

func TestOf_UsesLocation(t *testing.T) {
	// 2024-03-10 02:30 UTC is still March 9 in New York.
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts := time.Date(2024, time.March, 10, 2, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-09", Of(ts, ny).String())
	assert.Equal(t, "2024-03-10", Of(ts, time.UTC).String())
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		day  string
		want string
	}{
		{"2024-03-09", "2024-03-03"}, // Saturday
		{"2024-03-10", "2024-03-10"}, // Sunday
		{"2024-03-11", "2024-03-10"}, // Monday
		{"2024-01-02", "2023-12-31"}, // across a year boundary
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			d, err := Parse(tt.day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.WeekStart().String())
		})
	}
}

func TestSameWeek_SaturdayToSunday(t *testing.T) {
	sat, _ := Parse("2024-03-09")
	sun, _ := Parse("2024-03-10")
	assert.True(t, SameWeek(sat, sat))
	assert.False(t, SameWeek(sat, sun))
}

func TestAddDaysAndBefore(t *testing.T) {
	d, _ := Parse("2024-02-28")
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2024-02-27", d.AddDays(-1).String())
	assert.True(t, d.AddDays(-1).Before(d))
	assert.False(t, d.Before(d))
}
