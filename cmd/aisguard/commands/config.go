package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
)

// loadConfig loads the config named by --config and applies the command's
// explicitly set flags on top of it
func loadConfig(cmd *cobra.Command) (*am.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := am.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("workers") {
		cfg.Pulse.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("timeout") {
		cfg.Pulse.JoinTimeoutSeconds, _ = flags.GetInt("timeout")
	}
	if flags.Changed("sequential") {
		cfg.Pulse.Sequential, _ = flags.GetBool("sequential")
	}
	if flags.Changed("chunk-size") {
		cfg.Ingest.ChunkSize, _ = flags.GetInt("chunk-size")
	}
	if flags.Changed("ratio-mode") {
		cfg.Consistency.RatioMode, _ = flags.GetString("ratio-mode")
	}
	if flags.Changed("metrics") {
		cfg.Output.MetricsFile, _ = flags.GetString("metrics")
	}
	if flags.Changed("db") {
		cfg.Database.Path, _ = flags.GetString("db")
	}
	if flags.Changed("no-db") {
		if off, _ := flags.GetBool("no-db"); off {
			cfg.Database.Path = ""
		}
	}
	if flags.Changed("resources") {
		cfg.Resources.Enabled, _ = flags.GetBool("resources")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
