// Package pipeline orchestrates one detection run: the location and kinematic
// detectors run concurrently under a bounded join, then the consistency check
// runs over the full record set with whatever the detectors produced.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/consistency"
	"github.com/teranos/aisguard/detect"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/grid"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/pulse/pool"
)

// Orchestrator drives the stage state machine. A single Orchestrator may be
// reused for consecutive runs but not for concurrent ones.
type Orchestrator struct {
	cfg       *am.Config
	location  *detect.LocationDetector
	kinematic *detect.KinematicDetector
	checker   *consistency.Checker
	log       *zap.SugaredLogger

	joinTimeout time.Duration

	// beforeStage runs at the start of each stage; tests use it to stall or break one
	beforeStage func(ctx context.Context, stage string)
}

// New creates an orchestrator. A nil logger uses the global one.
func New(cfg *am.Config, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = logger.ComponentLogger("pipeline")
	}
	return &Orchestrator{
		cfg:       cfg,
		location:  detect.NewLocationDetector(cfg.Location),
		kinematic: detect.NewKinematicDetector(cfg.Kinematic),
		checker:   consistency.NewChecker(cfg.Consistency, log.Named("consistency")),
		log:       log,

		joinTimeout: cfg.Pulse.JoinTimeout(),
	}
}

// Run executes one detection pass over a cleaned record set. It returns an
// error only when no valid output can be built, which is marked with
// errors.ErrNoOutput. Stage timeouts degrade the report instead.
func (o *Orchestrator) Run(ctx context.Context, runID string, records []ais.PositionRecord) (*Report, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx, o.log)

	m := newMachine()
	report := &Report{
		RunID:   runID,
		Started: time.Now(),
		Records: len(records),
	}
	finish := func(err error) (*Report, error) {
		report.Transitions = m.log
		report.State = m.state
		report.Duration = time.Since(report.Started)
		return report, err
	}
	fail := func(cause error) (*Report, error) {
		_ = m.to(StateFailed)
		log.Errorw("run failed", logger.FieldState, m.state, logger.FieldError, cause)
		err := errors.Wrapf(errors.ErrNoOutput, "run %s", runID)
		return finish(errors.WithSecondaryError(err, cause))
	}

	if err := m.to(StateLoadedAndCleaned); err != nil {
		return finish(err)
	}
	tracks := ais.PartitionTracks(records)
	report.Tracks = len(tracks)
	log.Infow("records loaded", logger.FieldRecords, len(records), logger.FieldTracks, len(tracks))

	if err := m.to(StateABRunning); err != nil {
		return fail(err)
	}
	loc, kin := o.runAB(ctx, tracks, report)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	report.Jumps, report.Invalid = loc.Jumps, loc.Invalid
	report.Speed, report.Course = kin.Speed, kin.Course
	if err := m.to(StateABJoined); err != nil {
		return fail(err)
	}

	if err := m.to(StateCRunning); err != nil {
		return fail(err)
	}
	if err := o.runC(ctx, records, report); err != nil {
		return fail(err)
	}
	if err := m.to(StateDone); err != nil {
		return fail(err)
	}

	log.Infow("run complete",
		"jumps", report.Jumps.Len(),
		"invalid", report.Invalid.Len(),
		"speed", report.Speed.Len(),
		"course", report.Course.Len(),
		"inconsistent", report.Inconsistent(),
		"degraded", report.Degraded(),
		logger.FieldDurationMS, time.Since(report.Started).Milliseconds(),
	)
	return finish(nil)
}

// runAB launches stage A and stage B and joins both. In sequential mode B is
// launched only after A has joined. A stage that timed out or failed
// contributes empty tables, never partial ones.
func (o *Orchestrator) runAB(ctx context.Context, tracks []ais.VesselTrack, report *Report) (detect.LocationResult, detect.KinematicResult) {
	workers := o.cfg.Pulse.Workers
	sequential := o.cfg.Pulse.Sequential
	if !sequential {
		workers = pool.AllocateWorkers(workers, 2)
	}
	timeout := o.joinTimeout

	stageA := launch(ctx, timeout, func(ctx context.Context) stageResult[detect.LocationResult] {
		o.enter(ctx, StageA)
		res, stats := o.location.Run(ctx, tracks, o.poolOptions(StageA, workers))
		return stageResult[detect.LocationResult]{value: res, stats: stats}
	})

	var loc detect.LocationResult
	var outA StageOutcome
	if sequential {
		loc, outA = join(ctx, stageA, StageA, detect.NewLocationResult(), o.log)
	}

	stageB := launch(ctx, timeout, func(ctx context.Context) stageResult[detect.KinematicResult] {
		o.enter(ctx, StageB)
		res, stats := o.kinematic.Run(ctx, tracks, o.poolOptions(StageB, workers))
		return stageResult[detect.KinematicResult]{value: res, stats: stats}
	})

	if !sequential {
		loc, outA = join(ctx, stageA, StageA, detect.NewLocationResult(), o.log)
	}
	kin, outB := join(ctx, stageB, StageB, detect.NewKinematicResult(), o.log)

	report.Stages = append(report.Stages, outA, outB)
	return loc, kin
}

// runC indexes the full record set and runs the consistency check. It always
// runs after A and B have joined, whatever they produced.
func (o *Orchestrator) runC(ctx context.Context, records []ais.PositionRecord, report *Report) error {
	start := time.Now()
	o.enter(ctx, StageC)

	idx := grid.Build(records, o.cfg.Consistency.CellSizeDeg)
	report.Cells = idx.Len()

	out := StageOutcome{Name: StageC, Status: StatusOK}
	var res consistency.Report
	if o.cfg.Pulse.Sequential {
		res, out.Err = o.checker.Check(ctx, idx, report.Tables())
	} else {
		res, out.Stats = o.checker.Run(ctx, idx, report.Tables(), o.poolOptions(StageC, o.cfg.Pulse.Workers))
	}
	out.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		out.Err = err
	}
	if out.Err != nil {
		out.Status = StatusFailed
		report.Stages = append(report.Stages, out)
		return out.Err
	}
	report.Consistency = res
	report.Stages = append(report.Stages, out)
	return nil
}

func (o *Orchestrator) enter(ctx context.Context, stage string) {
	if o.beforeStage != nil {
		o.beforeStage(ctx, stage)
	}
}

func (o *Orchestrator) poolOptions(stage string, workers int) pool.Options {
	return pool.Options{Workers: workers, Name: stage, Logger: o.log.Named(stage)}
}
