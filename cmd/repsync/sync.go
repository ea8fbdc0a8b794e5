package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/local/daemon"
	localsync "github.com/liftlog/repsync/internal/local/sync"
	"github.com/liftlog/repsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local sessions to the remote",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one sync pass now",
	Long: `Push every session that has no remote id yet, and re-push sessions edited
since their last push. When the remote is unreachable nothing is sent and the
pass is reported as skipped.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()

		if !jsonOutput {
			fmt.Printf("%s Syncing...\n", ui.RenderAccent("🔄"))
		}
		res, err := e.syncer.ManualSync(context.Background())
		if err != nil {
			exitf("sync failed: %v", err)
		}

		if jsonOutput {
			printJSON(res)
			return
		}
		printSyncResult(res, e.online)
		if res.Failed > 0 {
			os.Exit(1)
		}
	},
}

func printSyncResult(res *localsync.Result, remoteConfigured bool) {
	if res.Status == localsync.StatusSkipped {
		fmt.Printf("%s Remote unreachable, %d sessions still pending\n", ui.RenderWarn("⚠"), res.Pending)
		if !remoteConfigured {
			fmt.Println(ui.RenderMuted("No remote is configured; set remote.url in config.yaml or REPSYNC_REMOTE_URL."))
		}
		return
	}

	mark := ui.RenderPass("✓")
	if res.Failed > 0 {
		mark = ui.RenderWarn("⚠")
	}
	fmt.Printf("%s Sync complete in %v\n", mark, res.Duration.Round(time.Millisecond))
	fmt.Printf("  Pushed:    %d\n", res.Pushed)
	fmt.Printf("  Updated:   %d\n", res.Updated)
	if res.Failed > 0 {
		fmt.Printf("  Failed:    %s\n", ui.RenderFail(fmt.Sprint(res.Failed)))
	}
	if res.Conflicts > 0 {
		fmt.Printf("  Conflicts: %s\n", ui.RenderWarn(fmt.Sprint(res.Conflicts)))
	}
	if res.Pending > 0 {
		fmt.Printf("  Pending:   %d\n", res.Pending)
	}
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is waiting to be pushed",
	Run: func(cmd *cobra.Command, args []string) {
		e := mustOpenEnv(nil)
		defer e.Close()

		report, err := e.syncer.Status(context.Background())
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			printJSON(report)
			return
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("📊"))
		if e.online {
			fmt.Printf("  Remote:  %s\n", cfg.Remote.URL)
		} else {
			fmt.Printf("  Remote:  %s\n", ui.RenderWarn("not configured"))
		}
		fmt.Printf("  Synced:  %d\n", report.Bound)
		fmt.Printf("  Pending: %d\n", len(report.Pending))
		fmt.Printf("  Edited:  %d\n", len(report.Dirty))
		for _, id := range report.Pending {
			fmt.Printf("    %s %s\n", ui.RenderMuted("new"), id)
		}
		for _, id := range report.Dirty {
			fmt.Printf("    %s %s\n", ui.RenderMuted("edited"), id)
		}
		fmt.Println()
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Import sessions from the inbox and sync in the background",
	Long: `Run in the foreground, importing session files that companion devices drop
into the inbox directory and, when an interval is set, syncing periodically.

Imported files move to inbox/imported/, unreadable ones to inbox/rejected/.

The daemon will:
  1. Import every *.json session file already in the inbox
  2. Watch the inbox and import new files once they settle
  3. Run a sync every --interval (0 disables periodic sync)

Stop with Ctrl+C.`,
	Run: func(cmd *cobra.Command, args []string) {
		interval := cfg.Daemon.Interval
		if cmd.Flags().Changed("interval") {
			interval, _ = cmd.Flags().GetDuration("interval")
		}

		e := mustOpenEnv(nil)
		defer e.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := runDaemon(ctx, e, interval); err != nil {
			exitf("%v", err)
		}
	},
}

// runDaemon runs the inbox daemon until ctx is done.
func runDaemon(ctx context.Context, e *env, interval time.Duration) error {
	d, err := daemon.NewWithConfig(e.store, e.syncer, cfg.InboxDir(), &daemon.Config{
		UserID:           cfg.UserID,
		DebounceInterval: cfg.Daemon.Debounce,
		SyncInterval:     interval,
		Logger:           logs.Logger("daemon"),
	})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	fmt.Printf("%s Starting repsync daemon...\n", ui.RenderAccent("🚀"))
	fmt.Printf("  Inbox: %s\n", cfg.InboxDir())
	if interval > 0 {
		fmt.Printf("  Sync:  every %v\n", interval)
	} else {
		fmt.Printf("  Sync:  %s\n", ui.RenderMuted("off"))
	}
	fmt.Println("\nPress Ctrl+C to stop...")

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	stats := d.Stats()
	fmt.Printf("\n%s Daemon stopped: imported %d, rejected %d, %d syncs\n",
		ui.RenderPass("✓"), stats.Imported, stats.Rejected, stats.Syncs)
	return nil
}

func init() {
	syncDaemonCmd.Flags().Duration("interval", 0, "Sync interval (default from daemon.interval; 0 disables)")

	syncCmd.AddCommand(syncRunCmd, syncStatusCmd, syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)
}
