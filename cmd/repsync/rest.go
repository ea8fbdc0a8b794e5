package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/derived"
	"github.com/liftlog/repsync/internal/local/calendar"
	"github.com/liftlog/repsync/internal/local/schema"
	"github.com/liftlog/repsync/internal/ui"
)

var restCmd = &cobra.Command{
	Use:     "rest",
	GroupID: "data",
	Short:   "Log rest days",
}

var restLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Log a rest day",
	Long: `Log a rest day with optional recovery activities.

--date accepts YYYY-MM-DD or phrases like "yesterday". --free spends this
week's free rest day on today so it keeps your streak alive.

Examples:
  repsync rest log -a stretching -a walk --caption "sore legs"
  repsync rest log --date yesterday
  repsync rest log --free`,
	Run: func(cmd *cobra.Command, args []string) {
		dateArg, _ := cmd.Flags().GetString("date")
		activities, _ := cmd.Flags().GetStringArray("activity")
		caption, _ := cmd.Flags().GetString("caption")
		free, _ := cmd.Flags().GetBool("free")

		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		day, err := parseDay(dateArg, e.clock.Now(), e.loc)
		if err != nil {
			exitf("%v", err)
		}
		today := e.calc.Today()
		if today.Before(day) {
			exitf("cannot log a rest day in the future (%s)", day)
		}
		if free && day != today {
			exitf("the free rest day can only be used for today")
		}

		marker, err := logRest(ctx, e, day, activities, caption, free)
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(marker)
			return
		}
		printRestLogged(marker)
	},
}

// logRest appends a rest day and marks the calendar. With free, the weekly
// free rest day is consumed first and given back if the write fails.
func logRest(ctx context.Context, e *env, day calendar.Day, activities []string, caption string, free bool) (*schema.CalendarMarker, error) {
	if free {
		if _, err := e.calc.ConsumeFreeRestDay(ctx); err != nil {
			if errors.Is(err, derived.ErrFreeRestDayUsed) {
				return nil, fmt.Errorf("this week's free rest day is already used; it renews on Sunday")
			}
			return nil, err
		}
	}

	if activities == nil {
		activities = []string{}
	}
	marker, err := e.store.LogRestDay(ctx, cfg.UserID, &schema.RestDayCompletion{
		Date:       day.Start(e.loc),
		Activities: activities,
		Caption:    caption,
	}, free)
	if err != nil && free {
		if _, rerr := e.calc.RevokeFreeRestDayIfUsedToday(ctx); rerr != nil {
			return nil, fmt.Errorf("%w (and failed to restore free rest day: %v)", err, rerr)
		}
	}
	return marker, err
}

func printRestLogged(m *schema.CalendarMarker) {
	switch {
	case m.Kind == schema.MarkerTrained:
		fmt.Printf("%s Rest logged for %s (day stays marked as trained)\n", ui.RenderPass("✓"), m.Date)
	case m.FreeDay:
		fmt.Printf("%s Free rest day used for %s\n", ui.RenderAccent("☆"), m.Date)
	default:
		fmt.Printf("%s Rest logged for %s\n", ui.RenderPass("✓"), m.Date)
	}
}

var restHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the rest day log",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		e := mustOpenEnv(nil)
		defer e.Close()

		entries, err := e.store.RestDays(context.Background())
		if err != nil {
			exitf("%v", err)
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}

		if jsonOutput {
			printJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No rest days logged yet.")
			return
		}

		rows := make([][]string, 0, len(entries))
		for _, r := range entries {
			rows = append(rows, []string{
				calendar.Of(r.Date, e.loc).String(),
				strings.Join(r.Activities, ", "),
				r.Caption,
			})
		}
		fmt.Println(ui.Table([]string{"Date", "Activities", "Caption"}, rows))
	},
}

func init() {
	restLogCmd.Flags().String("date", "", `Day to log (YYYY-MM-DD or e.g. "yesterday"; default: today)`)
	restLogCmd.Flags().StringArrayP("activity", "a", nil, "Recovery activity (repeatable)")
	restLogCmd.Flags().StringP("caption", "c", "", "Caption")
	restLogCmd.Flags().Bool("free", false, "Use this week's free rest day for today")

	restHistoryCmd.Flags().Int("limit", 0, "Show only the most recent N entries")

	restCmd.AddCommand(restLogCmd, restHistoryCmd)
	rootCmd.AddCommand(restCmd)
}
