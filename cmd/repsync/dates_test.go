package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, loc) // Saturday

	tests := []struct {
		in   string
		want string
	}{
		{"", "2026-03-14"},
		{"2026-03-01", "2026-03-01"},
		{"today", "2026-03-14"},
		{"yesterday", "2026-03-13"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			day, err := parseDay(tt.in, now, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, day.String())
		})
	}
}

func TestParseDay_Unrecognized(t *testing.T) {
	_, err := parseDay("banana", time.Now(), time.UTC)
	assert.Error(t, err)
}
