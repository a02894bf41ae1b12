package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/db"
	"github.com/teranos/aisguard/errors"
)

// DbCmd represents the db (run ledger) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the run ledger",
	Long: `db - Inspect the SQLite run ledger

Every run records its state, record counts, anomaly counts per kind and
stage outcomes.

Examples:
  aisguard db runs                 # Most recent runs
  aisguard db runs --limit 50
  aisguard db show <run-id>        # Counts and stage totals of one run`,
}

var dbRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE:  runDbRuns,
}

var dbShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runDbShow,
}

func init() {
	dbRunsCmd.Flags().Int("limit", 20, "Number of runs to show (0 = all)")
	DbCmd.PersistentFlags().String("db", "", "Run ledger path")
	DbCmd.AddCommand(dbRunsCmd)
	DbCmd.AddCommand(dbShowCmd)
}

func openStore(cmd *cobra.Command) (*db.RunStore, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Path == "" {
		return nil, nil, errors.WithHint(errors.Wrap(errors.ErrInvalidConfig, "no run ledger configured"), "set database.path")
	}
	database, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	if err != nil {
		return nil, nil, err
	}
	return db.NewRunStore(database, nil), func() { database.Close() }, nil
}

func runDbRuns(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	rows := pterm.TableData{{"Run", "Started", "State", "Records", "Flagged", "Took", "Degraded"}}
	for _, r := range runs {
		degraded := ""
		if r.Degraded {
			degraded = "yes"
		}
		rows = append(rows, []string{
			r.ID,
			humanize.Time(r.Started),
			string(r.State),
			humanize.Comma(int64(r.Records)),
			humanize.Comma(int64(r.Inconsistent)),
			r.Duration.Round(time.Millisecond).String(),
			degraded,
		})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render runs")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runDbShow(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	counts, err := store.Counts(ctx, run.ID)
	if err != nil {
		return err
	}
	stages, err := store.Stages(ctx, run.ID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.State)
	fmt.Fprintf(w, "  input:   %s\n", run.Input)
	fmt.Fprintf(w, "  started: %s, took %s\n", run.Started.Format(time.RFC3339), run.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  records: %s in %d chunks, %s tracks\n",
		humanize.Comma(int64(run.Records)), run.Chunks, humanize.Comma(int64(run.Tracks)))
	for _, kind := range ais.Kinds() {
		fmt.Fprintf(w, "  %-14s %s\n", kind, humanize.Comma(int64(counts[kind])))
	}
	fmt.Fprintf(w, "  %-14s %s in %d cells\n", "inconsistent", humanize.Comma(int64(run.Inconsistent)), run.FlaggedCells)
	for _, st := range stages {
		fmt.Fprintf(w, "  %s: %s, degraded %s, failed %s, item failures %s\n",
			st.Name, st.Duration, strconv.Itoa(st.Degraded), strconv.Itoa(st.Failed), strconv.Itoa(st.ItemFailures))
	}
	return nil
}
