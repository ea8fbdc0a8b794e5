package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/derived"
	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/ui"
)

var streakCmd = &cobra.Command{
	Use:     "streak",
	GroupID: "data",
	Short:   "Show your streak and this week at a glance",
	Long: `Show the current streak: consecutive days that were trained, or rested
on the weekly free rest day. Today counts once it is logged; until then the
streak runs through yesterday.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()

		sum, err := e.calc.WeeklySummary(context.Background(), cfg.UserID)
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(summaryJSON(sum))
			return
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent("🔥"), ui.RenderHeader(fmt.Sprintf("Streak: %d days", sum.Streak)))
		fmt.Println(ui.WeekStrip(weekCells(sum, e.calc.Today())))
		fmt.Printf("\nTrained %d · Rested %d", sum.Trained, sum.Rested)
		if sum.FreeRestDayUsed {
			fmt.Printf(" · Free rest day used %s", sum.FreeRestDayUsedOn.Weekday().String()[:3])
		} else {
			fmt.Print(" · Free rest day available")
		}
		fmt.Println()
	},
}

func weekCells(sum *derived.WeekSummary, today calendar.Day) []ui.DayCell {
	cells := make([]ui.DayCell, 0, len(sum.Days))
	for _, d := range sum.Days {
		c := ui.DayCell{
			Label:  d.Day.Weekday().String()[:3],
			Future: d.Future,
			Today:  d.Day == today,
		}
		if m := d.Marker; m != nil {
			c.Trained = m.Kind == schema.MarkerTrained
			c.Rested = m.Kind == schema.MarkerRested
			c.Free = m.FreeDay
		}
		cells = append(cells, c)
	}
	return cells
}

type dayJSON struct {
	Date    string `json:"date"`
	Kind    string `json:"kind,omitempty"`
	FreeDay bool   `json:"free_day,omitempty"`
	Future  bool   `json:"future,omitempty"`
}

func summaryJSON(sum *derived.WeekSummary) map[string]any {
	days := make([]dayJSON, 0, len(sum.Days))
	for _, d := range sum.Days {
		dj := dayJSON{Date: d.Day.String(), Future: d.Future}
		if d.Marker != nil {
			dj.Kind = string(d.Marker.Kind)
			dj.FreeDay = d.Marker.FreeDay
		}
		days = append(days, dj)
	}
	out := map[string]any{
		"streak":             sum.Streak,
		"trained":            sum.Trained,
		"rested":             sum.Rested,
		"free_rest_day_used": sum.FreeRestDayUsed,
		"days":               days,
	}
	if sum.FreeRestDayUsed {
		out["free_rest_day_used_on"] = sum.FreeRestDayUsedOn.String()
	}
	return out
}

func init() {
	rootCmd.AddCommand(streakCmd)
}
