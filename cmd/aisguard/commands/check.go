package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/consistency"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/grid"
	"github.com/teranos/aisguard/ixgest"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/report"
)

// CheckCmd represents the check command
var CheckCmd = &cobra.Command{
	Use:   "check <results-dir> [input.csv]",
	Short: "Re-run the grid consistency check over saved result tables",
	Long: `Re-run stage_c over result tables written by an earlier run.

The anomaly tables are read from results-dir; tables that are missing are
treated as empty, and tables without an MMSI column are excluded (the check
still runs, exit code 2). The input file supplies the full record set for
the grid; it defaults to ingest.path.

Use this to try a different cell size or ratio threshold without running
the detectors again.

Examples:
  aisguard check results/ aisdk.csv
  aisguard check results/ aisdk.csv --ratio-mode global_count`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			cfg.Ingest.Path = args[1]
		}
		// The check reads the whole file as one record set
		cfg.Ingest.ChunkSize = 0

		_, err = executeCheck(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		return err
	},
}

func init() {
	CheckCmd.Flags().String("ratio-mode", am.RatioModeCellOverlap, "Consistency ratio numerator: cell_overlap or global_count")
}

// loadTables reads every detector table present in dir
func loadTables(dir string) ([]ais.AnomalyTable, error) {
	var tables []ais.AnomalyTable
	for _, kind := range ais.Kinds() {
		path := filepath.Join(dir, report.FileFor(kind))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			tables = append(tables, ais.NewTable(kind))
			continue
		}
		t, err := report.ReadTable(path)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func executeCheck(ctx context.Context, cfg *am.Config, dir string, out io.Writer) (consistency.Report, error) {
	if cfg.Ingest.Path == "" {
		return consistency.Report{}, errors.WithHint(
			errors.Wrap(errors.ErrInvalidConfig, "no input file"),
			"pass the AIS file after the results directory")
	}
	log := logger.ComponentLogger("check")

	tables, err := loadTables(dir)
	if err != nil {
		return consistency.Report{}, err
	}

	records, stats, err := ixgest.LoadFile(ctx, cfg.Ingest.Path, cfg.Ingest, log.Named("ixgest"))
	if err != nil {
		return consistency.Report{}, err
	}

	idx := grid.Build(records, cfg.Consistency.CellSizeDeg)
	checker := consistency.NewChecker(cfg.Consistency, log)
	result, err := checker.Check(ctx, idx, tables)
	if err != nil {
		return result, err
	}

	rows := pterm.TableData{{"Cell", "Records", "Vessels", "Anomalous", "Ratio"}}
	for _, c := range result.Cells {
		rows = append(rows, []string{
			c.Key.String(),
			humanize.Comma(int64(c.Records)),
			strconv.Itoa(c.Vessels),
			strconv.Itoa(c.Anomalous),
			strconv.FormatFloat(c.Ratio, 'f', 3, 64),
		})
	}
	fmt.Fprintf(out, "%s records in %s cells, %s populated\n",
		humanize.Comma(int64(len(records))), humanize.Comma(int64(idx.Len())),
		humanize.Comma(int64(len(idx.Populated(cfg.Consistency.MinCellPopulation)))))
	if stats.Dropped() > 0 {
		fmt.Fprintf(out, "%s input rows dropped while cleaning\n", humanize.Comma(int64(stats.Dropped())))
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return result, errors.Wrap(err, "failed to render cells")
	}
	fmt.Fprintln(out, table)
	fmt.Fprintf(out, "%s inconsistent records in %d flagged cells\n", humanize.Comma(int64(len(result.Records))), len(result.Cells))

	if len(result.Excluded) > 0 {
		return result, errors.Mark(
			errors.Wrapf(errors.ErrSchemaMismatch, "tables excluded: %v", result.Excluded), ErrDegraded)
	}
	return result, nil
}
