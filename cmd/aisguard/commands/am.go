package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage aisguard configuration",
	Long: `am - Manage aisguard configuration ("I am")

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (AISGUARD_* prefix, e.g. AISGUARD_PULSE_WORKERS)
3. Config file (--config, or aisguard.toml searched upward from the working directory)
4. Default values

Examples:
  aisguard am show                 # Show the effective configuration
  aisguard am init                 # Write aisguard.toml with defaults
  aisguard am validate             # Validate the effective configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("config")
		if used := am.ConfigFileUsed(path); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "# defaults (no config file found)")
		}
		return cfg.Encode(cmd.OutOrStdout())
	},
}

var amInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Long: `Write a config file with default values. An existing file is kept as
path.back1 (older copies rotate to .back2 and .back3).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := am.ProjectConfigName
		if len(args) == 1 {
			path = args[0]
		}
		if err := am.WriteConfig(am.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
		return nil
	},
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := am.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
		return nil
	},
}

func init() {
	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amInitCmd)
	AmCmd.AddCommand(amValidateCmd)
}
