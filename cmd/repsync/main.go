package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liftlog/repsync/internal/config"
	"github.com/liftlog/repsync/internal/logging"
	"github.com/liftlog/repsync/internal/ui"
)

var (
	v          = config.New()
	cfg        *config.Config
	logs       *logging.Sink
	configFile string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "repsync",
	Short: "Local-first workout log with background sync",
	Long: `repsync keeps your workouts, sessions, and rest days in a local database
and pushes completed sessions to a remote service whenever it is reachable.

Every command works offline. Run 'repsync sync run' or 'repsync sync daemon'
to push pending sessions.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(os.Stdout)

		var err error
		cfg, err = config.Load(v, configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		logs, err = logging.Open(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Quiet:      quiet,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Workouts and rest days:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: <data-dir>/config.yaml)")
	flags.String("data-dir", "", "Data directory (default: ~/.repsync)")
	flags.String("user", "", "User id that owns calendar markers")
	flags.String("timezone", "", "IANA timezone for calendar days (default: device local)")
	flags.BoolVar(&jsonOutput, "json", false, "Output JSON")
	flags.BoolP("quiet", "q", false, "Suppress log output")

	// Flags override the config file and environment.
	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("user_id", flags.Lookup("user"))
	_ = v.BindPFlag("timezone", flags.Lookup("timezone"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
