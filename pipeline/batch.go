package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
)

// ChunkSource yields cleaned record chunks. Next returns io.EOF when the
// input is exhausted.
type ChunkSource interface {
	Next(ctx context.Context) ([]ais.PositionRecord, error)
}

// Sink receives each chunk report as soon as the chunk completes
type Sink interface {
	WriteChunk(ctx context.Context, report *Report) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, report *Report) error

// WriteChunk calls f
func (f SinkFunc) WriteChunk(ctx context.Context, report *Report) error {
	return f(ctx, report)
}

// StageTotals aggregates one stage across chunks
type StageTotals struct {
	Name         string
	Duration     time.Duration
	Degraded     int // chunks in which the stage timed out
	Failed       int // chunks in which the stage failed
	ItemFailures int // work items that failed inside the pool
}

// Summary aggregates every chunk of a run
type Summary struct {
	RunID        string
	Chunks       int
	Records      int
	Tracks       int
	Counts       map[ais.AnomalyKind]int
	Inconsistent int
	FlaggedCells int
	Stages       []StageTotals // stage_a, stage_b, stage_c
	State        State         // state of the last chunk
	Started      time.Time
	Duration     time.Duration
}

func newSummary(runID string) *Summary {
	return &Summary{
		RunID:   runID,
		Counts:  make(map[ais.AnomalyKind]int, 4),
		Stages:  []StageTotals{{Name: StageA}, {Name: StageB}, {Name: StageC}},
		State:   StateIdle,
		Started: time.Now(),
	}
}

// Degraded reports whether any stage was force-terminated or failed in any chunk
func (s *Summary) Degraded() bool {
	for _, st := range s.Stages {
		if st.Degraded > 0 || st.Failed > 0 {
			return true
		}
	}
	return false
}

// Total returns the number of anomaly records across all kinds
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

func (s *Summary) add(r *Report) {
	s.Chunks++
	s.Records += r.Records
	s.Tracks += r.Tracks
	for kind, n := range r.Counts() {
		s.Counts[kind] += n
	}
	s.Inconsistent += r.Inconsistent()
	s.FlaggedCells += len(r.Consistency.Cells)
	s.State = r.State

	for _, out := range r.Stages {
		for i := range s.Stages {
			st := &s.Stages[i]
			if st.Name != out.Name {
				continue
			}
			st.Duration += out.Duration
			st.ItemFailures += out.Stats.Failed
			switch out.Status {
			case StatusDegraded:
				st.Degraded++
			case StatusFailed:
				st.Failed++
			}
		}
	}
}

// RunChunks runs the orchestrator once per chunk from src, handing every
// chunk report to the sinks in order. Chunks are independent: tracks and grid
// cells do not span chunk boundaries.
func (o *Orchestrator) RunChunks(ctx context.Context, runID string, src ChunkSource, sinks ...Sink) (*Summary, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	summary := newSummary(runID)
	defer func() { summary.Duration = time.Since(summary.Started) }()

	for chunk := 0; ; chunk++ {
		records, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, errors.Wrapf(err, "failed to read chunk %d", chunk)
		}

		chunkCtx := logger.WithChunk(ctx, chunk)
		report, err := o.Run(chunkCtx, runID, records)
		if report != nil {
			report.Chunk = chunk
			summary.add(report)
		}
		if err != nil {
			return summary, err
		}

		for _, sink := range sinks {
			if err := sink.WriteChunk(chunkCtx, report); err != nil {
				return summary, errors.Wrapf(err, "failed to write chunk %d", chunk)
			}
		}
	}

	logger.FromContext(logger.WithRunID(ctx, runID), o.log).Infow("batch run complete",
		"chunks", summary.Chunks,
		logger.FieldRecords, summary.Records,
		logger.FieldTotalCount, summary.Total(),
		"inconsistent", summary.Inconsistent,
		"degraded", summary.Degraded(),
	)
	return summary, nil
}
