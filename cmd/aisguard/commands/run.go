package commands

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/db"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/ixgest"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/metrics"
	"github.com/teranos/aisguard/pipeline"
	"github.com/teranos/aisguard/pulse"
	"github.com/teranos/aisguard/pulse/resources"
	"github.com/teranos/aisguard/report"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run [input.csv]",
	Short: "Detect anomalies in an AIS position file",
	Long: `Detect anomalies in an AIS position export.

The input may be plain CSV or gzip/zstd compressed (.gz, .zst). Records are
cleaned, grouped into per-vessel tracks, and checked by two concurrent stages:

  stage_a  location jumps and the (91, 0) "no position" fix
  stage_b  speed over ground and course/turn-rate limits

Each of them has a join timeout; a stage that misses it contributes an empty
table and the run is reported as degraded (exit code 2). The grid consistency
check (stage_c) then runs over every record with whatever A and B produced.

Results are written to the output directory as one CSV per anomaly kind plus
inconsistent_vessels.csv, and the run is recorded in the SQLite ledger.

Examples:
  aisguard run aisdk-2025-02-01.csv
  aisguard run aisdk.csv.gz --out results/feb --workers 8
  aisguard run aisdk.csv --chunk-size 500000 --metrics aisguard.prom
  aisguard run aisdk.csv --sequential --no-db`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Ingest.Path = args[0]
		}

		opts := runOptions{}
		opts.runID, _ = cmd.Flags().GetString("run-id")
		opts.json, _ = cmd.Flags().GetBool("json")
		opts.verbosity, _ = cmd.Flags().GetCount("verbose")

		_, err = executeRun(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		return err
	},
}

func init() {
	RunCmd.Flags().StringP("out", "o", "", "Output directory for result tables")
	RunCmd.Flags().IntP("workers", "w", am.DefaultWorkers, "Workers per stage")
	RunCmd.Flags().Int("timeout", am.DefaultJoinTimeoutSecs, "Join timeout per detector stage in seconds (0 = none)")
	RunCmd.Flags().Bool("sequential", false, "Run the stages one after another")
	RunCmd.Flags().Int("chunk-size", 0, "Rows per chunk (0 = whole file)")
	RunCmd.Flags().String("ratio-mode", am.RatioModeCellOverlap, "Consistency ratio numerator: cell_overlap or global_count")
	RunCmd.Flags().String("metrics", "", "Write Prometheus text-format metrics to this file")
	RunCmd.Flags().String("db", "", "Run ledger path")
	RunCmd.Flags().Bool("no-db", false, "Do not record the run in the ledger")
	RunCmd.Flags().Bool("resources", false, "Sample CPU and memory during the run")
	RunCmd.Flags().String("run-id", "", "Run id (default: random UUID)")
	RunCmd.Flags().Bool("json", false, "Emit progress as JSON events instead of a summary")
}

type runOptions struct {
	runID     string
	json      bool
	verbosity int
}

// executeRun performs one detection run with every collaborator the config
// enables. The summary is returned even when the run fails part way.
func executeRun(ctx context.Context, cfg *am.Config, opts runOptions, out io.Writer) (*pipeline.Summary, error) {
	if cfg.Ingest.Path == "" {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrInvalidConfig, "no input file"),
			"pass the AIS file as an argument or set ingest.path")
	}
	if opts.runID == "" {
		opts.runID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, opts.runID)
	log := logger.FromContext(ctx, logger.ComponentLogger("run"))

	var emitter pulse.ProgressEmitter = report.NewCLIEmitter(opts.verbosity)
	if opts.json {
		emitter = report.NewJSONEmitter(out)
	}

	emitter.EmitStage("ingest", cfg.Ingest.Path)
	reader, err := ixgest.OpenFile(cfg.Ingest.Path, cfg.Ingest, log.Named("ixgest"))
	if err != nil {
		emitter.EmitError("ingest", err)
		return nil, err
	}
	defer reader.Close()

	var sampler *resources.Sampler
	if cfg.Resources.Enabled {
		sampler, err = resources.NewSampler(cfg.Resources.SampleInterval(), log.Named("resources"))
		if err != nil {
			log.Warnw("resource sampling disabled", logger.FieldError, err)
		} else {
			sampler.Start(ctx)
		}
	}

	recorder := metrics.NewRecorder()
	sinks := []pipeline.Sink{recorder, report.NewProgressSink(emitter)}

	var writer *report.Writer
	if cfg.Output.SaveCSV {
		writer, err = report.NewWriter(cfg.Output.Dir, log.Named("report"))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, writer)
	}

	store, closeStore, err := openLedger(ctx, cfg, opts.runID, log)
	if err != nil {
		return nil, err
	}
	defer closeStore()
	if store != nil {
		sinks = append(sinks, store)
	}

	emitter.EmitStage("detect", "running stages A and B, then C")
	orchestrator := pipeline.New(cfg, log.Named("pipeline"))
	summary, runErr := orchestrator.RunChunks(ctx, opts.runID, reader, sinks...)

	var usage resources.Usage
	if sampler != nil {
		usage = sampler.Stop()
		recorder.ObserveUsage(usage)
	}

	if store != nil && summary != nil {
		// Record failed runs too; use a fresh context so cancellation does not lose the row
		if err := store.FinishRun(context.WithoutCancel(ctx), cfg.Ingest.Path, summary); err != nil {
			log.Errorw("failed to record run", logger.FieldError, err)
		}
	}
	if cfg.Output.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			log.Errorw("failed to write metrics", logger.FieldPath, cfg.Output.MetricsFile, logger.FieldError, err)
		}
	}

	if runErr != nil {
		emitter.EmitError("detect", runErr)
		return summary, runErr
	}

	report.CompleteSummary(emitter, summary)
	if !opts.json {
		rs := report.RunSummary{Pipeline: summary, Ingest: reader.Stats(), Usage: usage}
		if writer != nil {
			rs.Files = writer.Files()
		}
		if err := report.PrintSummary(out, rs); err != nil {
			return summary, err
		}
	}

	if summary.Degraded() {
		return summary, errors.Mark(errors.Newf("run %s completed with degraded stages", summary.RunID), ErrDegraded)
	}
	return summary, nil
}

// openLedger opens the run ledger and inserts the run row. With no database
// path it returns a nil store and a no-op closer.
func openLedger(ctx context.Context, cfg *am.Config, runID string, log *zap.SugaredLogger) (*db.RunStore, func(), error) {
	if cfg.Database.Path == "" {
		return nil, func() {}, nil
	}
	database, err := db.OpenWithMigrations(cfg.Database.Path, log.Named("db"))
	if err != nil {
		return nil, nil, errors.WithHint(err, "use --no-db to run without the ledger")
	}
	store := db.NewRunStore(database, log.Named("db"))
	if err := store.BeginRun(ctx, runID, cfg.Ingest.Path, time.Now()); err != nil {
		database.Close()
		return nil, nil, err
	}
	return store, func() { database.Close() }, nil
}
