package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/liftlog/repsync/internal/dashboard"
	"github.com/liftlog/repsync/internal/ui"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start a live WebSocket dashboard",
	Long: `Start a WebSocket server that streams local writes and sync progress.

WebSocket messages include:
- record_update: A record was created, updated, or deleted
- entity_bound: A session received its remote id
- sync_started / sync_complete: A sync pass began or finished
- stats: Counts, pending pushes, streak, and free rest day availability

With --daemon the inbox daemon runs in the same process, so imported
sessions and periodic syncs show up live.

Example usage:
  repsync dashboard                 # Start on the configured port (default 8080)
  repsync dashboard --port 9000     # Start on a custom port
  repsync dashboard --daemon        # Also import from the inbox and sync

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port := cfg.Dashboard.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		withDaemon, _ := cmd.Flags().GetBool("daemon")

		server := dashboard.NewServer(&dashboard.Config{
			Host:   cfg.Dashboard.Host,
			Port:   port,
			Logger: logs.Logger("dashboard"),
		})
		// The handler needs the store for stats and the store needs the
		// handler for change events, so stats are bound after opening.
		var stats dashboard.StatsFunc
		handler := dashboard.NewHandler(server, func(ctx context.Context) (*dashboard.StatsData, error) {
			return stats(ctx)
		}, logs.Logger("dashboard"))

		e := mustOpenEnv(handler)
		defer e.Close()
		stats = dashboard.StoreStats(e.store, e.syncer, e.calc, cfg.UserID)

		if err := server.Start(); err != nil {
			exitf("failed to start dashboard: %v", err)
		}

		addr := server.GetAddr()
		fmt.Printf("%s Dashboard server started on http://%s\n", ui.RenderAccent("📡"), addr)
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", addr)
		fmt.Printf("Health check: http://%s/health\n", addr)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := handler.RefreshStats(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed to compute stats: %v\n", ui.RenderWarn("⚠"), err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			handler.Run(gctx)
			return nil
		})
		if withDaemon {
			g.Go(func() error {
				return runDaemon(gctx, e, cfg.Daemon.Interval)
			})
		} else {
			fmt.Println("\nPress Ctrl+C to stop...")
		}

		runErr := g.Wait()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			exitf("error during shutdown: %v", err)
		}
		if runErr != nil {
			exitf("%v", runErr)
		}
		fmt.Println("Dashboard server stopped")
	},
}

func init() {
	dashboardCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default from dashboard.port)")
	dashboardCmd.Flags().Bool("daemon", false, "Also run the inbox daemon")

	rootCmd.AddCommand(dashboardCmd)
}
