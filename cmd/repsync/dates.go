package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/liftlog/repsync/internal/local/calendar"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDay resolves a date flag to a local calendar day. It accepts
// YYYY-MM-DD and natural language such as "yesterday" or "last saturday".
// An empty string is today.
func parseDay(s string, now time.Time, loc *time.Location) (calendar.Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return calendar.Of(now, loc), nil
	}
	if day, err := calendar.Parse(s); err == nil {
		return day, nil
	}

	res, err := dateParser.Parse(s, now.In(loc))
	if err != nil {
		return calendar.Day{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if res == nil {
		return calendar.Day{}, fmt.Errorf("unrecognized date %q", s)
	}
	return calendar.Of(res.Time, loc), nil
}
