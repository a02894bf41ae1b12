package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/pipeline"
)

// Run is one row of the runs table
type Run struct {
	ID           string
	Input        string
	State        pipeline.State
	Started      time.Time
	Duration     time.Duration
	Chunks       int
	Records      int
	Tracks       int
	Inconsistent int
	FlaggedCells int
	Degraded     bool
}

// RunStore records runs in the ledger. It satisfies pipeline.Sink so chunk
// progress lands in run_chunks while the run is still going.
type RunStore struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewRunStore wraps an opened and migrated database
func NewRunStore(db *sql.DB, log *zap.SugaredLogger) *RunStore {
	if log == nil {
		log = logger.ComponentLogger("db")
	}
	return &RunStore{db: db, log: log}
}

// BeginRun inserts the run row in the Idle state
func (s *RunStore) BeginRun(ctx context.Context, runID, input string, started time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, state, started_at) VALUES (?, ?, ?, ?)`,
		runID, input, string(pipeline.StateIdle), started.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "failed to begin run %s", runID)
	}
	return nil
}

// WriteChunk records one chunk report
func (s *RunStore) WriteChunk(ctx context.Context, r *pipeline.Report) error {
	total := 0
	for _, n := range r.Counts() {
		total += n
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_chunks
			(run_id, chunk, records, anomalies, inconsistent, state, degraded, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Chunk, r.Records, total, r.Inconsistent(), string(r.State), r.Degraded(), r.Duration.Milliseconds())
	if err != nil {
		return errors.Wrapf(err, "failed to record chunk %d of run %s", r.Chunk, r.RunID)
	}
	return nil
}

// FinishRun writes the final summary, its per-kind counts and stage totals
// in one transaction. The run row is created if BeginRun was never called.
func (s *RunStore) FinishRun(ctx context.Context, input string, sum *pipeline.Summary) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to begin transaction for run %s", sum.RunID)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input, state, started_at, duration_ms, chunks, records, tracks, inconsistent, flagged_cells, degraded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			input = excluded.input,
			state = excluded.state,
			duration_ms = excluded.duration_ms,
			chunks = excluded.chunks,
			records = excluded.records,
			tracks = excluded.tracks,
			inconsistent = excluded.inconsistent,
			flagged_cells = excluded.flagged_cells,
			degraded = excluded.degraded`,
		sum.RunID, input, string(sum.State), sum.Started.UTC().Format(time.RFC3339Nano),
		sum.Duration.Milliseconds(), sum.Chunks, sum.Records, sum.Tracks,
		sum.Inconsistent, sum.FlaggedCells, sum.Degraded())
	if err != nil {
		return errors.Wrapf(err, "failed to write run %s", sum.RunID)
	}

	for _, kind := range ais.Kinds() {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_counts (run_id, kind, records) VALUES (?, ?, ?)`,
			sum.RunID, string(kind), sum.Counts[kind])
		if err != nil {
			return errors.Wrapf(err, "failed to write %s count of run %s", kind, sum.RunID)
		}
	}

	for _, st := range sum.Stages {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO run_stages (run_id, stage, duration_ms, degraded, failed, item_failures)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sum.RunID, st.Name, st.Duration.Milliseconds(), st.Degraded, st.Failed, st.ItemFailures)
		if err != nil {
			return errors.Wrapf(err, "failed to write %s totals of run %s", st.Name, sum.RunID)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit run %s", sum.RunID)
	}

	s.log.Debugw("Run recorded", logger.FieldRunID, sum.RunID, logger.FieldState, sum.State)
	return nil
}

const runColumns = `id, input, state, started_at, duration_ms, chunks, records, tracks, inconsistent, flagged_cells, degraded`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r          Run
		state      string
		started    string
		durationMS int64
	)
	err := row.Scan(&r.ID, &r.Input, &state, &started, &durationMS,
		&r.Chunks, &r.Records, &r.Tracks, &r.Inconsistent, &r.FlaggedCells, &r.Degraded)
	if err != nil {
		return Run{}, err
	}
	r.State = pipeline.State(state)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Run{}, errors.Wrapf(err, "run %s has malformed started_at %q", r.ID, started)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A limit below 1 returns all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// GetRun loads one run
func (s *RunStore) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.Wrapf(ErrRunNotFound, "%s", runID)
	}
	if err != nil {
		return Run{}, errors.Wrapf(err, "failed to load run %s", runID)
	}
	return r, nil
}

// Counts returns the per-kind anomaly counts of a run
func (s *RunStore) Counts(ctx context.Context, runID string) (map[ais.AnomalyKind]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, records FROM run_counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load counts of run %s", runID)
	}
	defer rows.Close()

	counts := make(map[ais.AnomalyKind]int, 4)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan count")
		}
		counts[ais.AnomalyKind(kind)] = n
	}
	return counts, errors.Wrap(rows.Err(), "failed to iterate counts")
}

// Stages returns the stage totals of a run in stage order
func (s *RunStore) Stages(ctx context.Context, runID string) ([]pipeline.StageTotals, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, duration_ms, degraded, failed, item_failures FROM run_stages WHERE run_id = ? ORDER BY stage`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load stages of run %s", runID)
	}
	defer rows.Close()

	var stages []pipeline.StageTotals
	for rows.Next() {
		var st pipeline.StageTotals
		var ms int64
		if err := rows.Scan(&st.Name, &ms, &st.Degraded, &st.Failed, &st.ItemFailures); err != nil {
			return nil, errors.Wrap(err, "failed to scan stage")
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		stages = append(stages, st)
	}
	return stages, errors.Wrap(rows.Err(), "failed to iterate stages")
}

// ChunkCount returns how many chunks of a run were recorded
func (s *RunStore) ChunkCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_chunks WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count chunks of run %s", runID)
	}
	return n, nil
}
