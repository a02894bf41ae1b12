package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/aisguard/cmd/aisguard/commands"
	"github.com/teranos/aisguard/logger"
)

var rootCmd = &cobra.Command{
	Use:   "aisguard",
	Short: "aisguard - AIS vessel anomaly detection",
	Long: `aisguard - anomaly detection over AIS vessel telemetry.

Reads an AIS position export, runs the location and kinematic detectors
concurrently under a bounded join, then flags grid cells where too many
vessels misbehave together.

Available commands:
  run      - Detect anomalies in an AIS file
  check    - Re-run the grid consistency check over saved result tables
  am       - Manage aisguard configuration ("I am")
  db       - Inspect the run ledger
  version  - Show build information

Examples:
  aisguard run aisdk-2025-02-01.csv          # Detect with defaults
  aisguard run aisdk.csv.zst --workers 8     # More workers, compressed input
  aisguard run aisdk.csv --chunk-size 500000 # Batch mode
  aisguard check results/ aisdk.csv          # Stage C only
  aisguard db runs                           # Recent runs`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: aisguard.toml searched upward from the working directory)")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.CheckCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", commands.Describe(err))
	}
	os.Exit(commands.ExitCode(err))
}
