package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/identity"
	"github.com/liftlog/repsync/internal/local/schema"
	localsync "github.com/liftlog/repsync/internal/local/sync"
	"github.com/liftlog/repsync/internal/ui"
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	GroupID: "data",
	Short:   "Log and inspect completed workout sessions",
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Record a completed workout session",
	Long: `Record a completed workout session and mark today as trained.

The session is saved locally and pushed on the next sync.

Examples:
  repsync session complete --workout <id> --duration 45m
  repsync session complete --name "Morning run" --duration 30m --notes "easy pace"`,
	Run: func(cmd *cobra.Command, args []string) {
		workoutArg, _ := cmd.Flags().GetString("workout")
		name, _ := cmd.Flags().GetString("name")
		duration, _ := cmd.Flags().GetDuration("duration")
		notes, _ := cmd.Flags().GetString("notes")
		lines, _ := cmd.Flags().GetStringArray("exercise")

		if workoutArg == "" && name == "" {
			exitf("either --workout or --name is required")
		}
		if duration < 0 {
			exitf("--duration must not be negative")
		}

		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		now := e.clock.Now()
		sess := &schema.WorkoutSession{
			Name:            name,
			CompletedAt:     now,
			DurationSeconds: int(duration.Seconds()),
			Notes:           notes,
		}
		if duration > 0 {
			sess.StartedAt = now.Add(-duration)
		}

		if workoutArg != "" {
			id, err := parseID(workoutArg)
			if err != nil {
				exitf("%v", err)
			}
			w, err := e.store.SavedWorkout(ctx, id)
			if err != nil {
				exitf("%s", describeWorkoutError(err))
			}
			sess.SavedWorkoutID = &w.ID
			sess.Exercises = w.Exercises
			if sess.Name == "" {
				sess.Name = w.Name
			}
		}
		if len(lines) > 0 {
			exercises, err := parseExercises(lines)
			if err != nil {
				exitf("%v", err)
			}
			sess.Exercises = exercises
		}

		stored, err := e.store.CompleteSession(ctx, cfg.UserID, sess)
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(stored)
			return
		}
		fmt.Printf("%s Logged %s (%s)\n", ui.RenderPass("✓"), stored.Name, stored.ID)
		if streak, err := e.calc.CurrentStreak(ctx, cfg.UserID); err == nil {
			fmt.Printf("%s Streak: %d days\n", ui.RenderAccent("🔥"), streak)
		}
	},
}

// sessionRow is one line of 'session list --json'.
type sessionRow struct {
	*schema.WorkoutSession
	RemoteID string `json:"remote_id,omitempty"`
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed sessions and their sync state",
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()
		ctx := context.Background()

		sessions, err := e.store.Sessions(ctx)
		if err != nil {
			exitf("%v", err)
		}

		out := make([]sessionRow, 0, len(sessions))
		for _, s := range sessions {
			row := sessionRow{WorkoutSession: s}
			remoteID, err := e.mapper.Resolve(ctx, s.ID)
			switch {
			case err == nil:
				row.RemoteID = remoteID.String()
			case !errors.Is(err, identity.ErrUnresolved):
				exitf("%v", err)
			}
			out = append(out, row)
		}

		if jsonOutput {
			printJSON(out)
			return
		}
		if len(out) == 0 {
			fmt.Println("No sessions logged yet.")
			return
		}

		rows := make([][]string, 0, len(out))
		for _, r := range out {
			state := ui.RenderWarn("pending")
			if r.RemoteID != "" {
				state = ui.RenderPass("synced")
			}
			rows = append(rows, []string{
				r.CompletedAt.In(e.loc).Format("2006-01-02 15:04"),
				r.Name,
				(time.Duration(r.DurationSeconds) * time.Second).String(),
				state,
				r.ID.Value,
			})
		}
		fmt.Println(ui.Table([]string{"Completed", "Session", "Duration", "Sync", "ID"}, rows))
	},
}

var sessionResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Print the remote id of a session, syncing first if needed",
	Long: `Print the remote id of a session.

If the session has not been pushed yet, a sync is triggered and retried a few
times. When the remote stays unreachable the command fails with "sync
required" and the session stays queued.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := parseID(args[0])
		if err != nil {
			exitf("%v", err)
		}

		e := mustOpenEnv(nil)
		defer e.Close()

		remoteID, err := e.syncer.EnsureResolved(context.Background(), id)
		if err != nil {
			if errors.Is(err, localsync.ErrSyncRequired) {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
				if !e.online {
					fmt.Fprintln(os.Stderr, "No remote is configured; set remote.url in config.yaml or REPSYNC_REMOTE_URL.")
				}
				os.Exit(1)
			}
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(map[string]string{"local_id": id.String(), "remote_id": remoteID.String()})
			return
		}
		fmt.Println(remoteID)
	},
}

func init() {
	sessionCompleteCmd.Flags().StringP("workout", "w", "", "Saved workout id to copy the name and exercises from")
	sessionCompleteCmd.Flags().StringP("name", "n", "", "Session name (default: the workout's name)")
	sessionCompleteCmd.Flags().Duration("duration", 0, "How long the session took, e.g. 45m")
	sessionCompleteCmd.Flags().String("notes", "", "Notes")
	sessionCompleteCmd.Flags().StringArrayP("exercise", "e", nil, `Exercise as "Name: SETSxREPS[@WEIGHT]" (repeatable, replaces the workout's)`)

	sessionCmd.AddCommand(sessionCompleteCmd, sessionListCmd, sessionResolveCmd)
	rootCmd.AddCommand(sessionCmd)
}
