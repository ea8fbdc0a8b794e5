package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/ui"
)

var freedayCmd = &cobra.Command{
	Use:     "freeday",
	GroupID: "data",
	Short:   "Check, use, or undo the weekly free rest day",
	Long: `One free rest day per week keeps your streak alive on a day you rest.
Weeks start on Sunday in your configured timezone.`,
}

var freedayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the free rest day is available",
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		available, err := e.calc.IsFreeRestDayAvailable(ctx)
		if err != nil {
			exitf("%v", err)
		}
		last, used, err := e.calc.LastFreeRestDay(ctx)
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			out := map[string]any{"available": available}
			if used {
				out["last_used"] = last.String()
			}
			printJSON(out)
			return
		}

		if available {
			fmt.Printf("%s Free rest day available this week\n", ui.RenderPass("✓"))
		} else {
			next := e.calc.Today().WeekStart().AddDays(7)
			fmt.Printf("%s Free rest day used on %s (renews %s)\n", ui.RenderWarn("○"), last, next)
		}
		if available && used {
			fmt.Println(ui.RenderMuted("Last used " + last.String()))
		}
	},
}

var freedayUseCmd = &cobra.Command{
	Use:   "use",
	Short: "Use the free rest day for today",
	Run: func(cmd *cobra.Command, args []string) {
		activities, _ := cmd.Flags().GetStringArray("activity")
		caption, _ := cmd.Flags().GetString("caption")

		e := mustOpenEnv(nil)
		defer e.Close()

		marker, err := logRest(context.Background(), e, e.calc.Today(), activities, caption, true)
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

var freedayUndoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Give back a free rest day used today",
	Long: `Give back the free rest day if it was used today. A free rest day
used on an earlier day cannot be undone.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		revoked, err := e.calc.RevokeFreeRestDayIfUsedToday(ctx)
		if err != nil {
			exitf("%v", err)
		}
		if revoked {
			if err := e.store.ClearFreeDay(ctx, cfg.UserID, e.calc.Today()); err != nil {
				exitf("free rest day restored but failed to update today's marker: %v", err)
			}
		}

		if jsonOutput {
			printJSON(map[string]bool{"revoked": revoked})
			return
		}
		if revoked {
			fmt.Printf("%s Free rest day restored\n", ui.RenderPass("✓"))
		} else {
			fmt.Printf("%s The free rest day was not used today; nothing to undo\n", ui.RenderWarn("⚠"))
		}
	},
}

func init() {
	freedayUseCmd.Flags().StringArrayP("activity", "a", nil, "Recovery activity (repeatable)")
	freedayUseCmd.Flags().StringP("caption", "c", "", "Caption")

	freedayCmd.AddCommand(freedayStatusCmd, freedayUseCmd, freedayUndoCmd)
	rootCmd.AddCommand(freedayCmd)
}
