// Package consistency cross-checks detector output spatially: grid cells in
// which a large share of records belongs to anomalous vessels are flagged as a
// whole.
package consistency

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/grid"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/pulse/pool"
)

// FlaggedCell describes one cell that crossed the ratio threshold
type FlaggedCell struct {
	Key       grid.CellKey
	Bound     orb.Bound
	Records   int     // cell record count, the ratio denominator
	Vessels   int     // distinct vessels in the cell
	Anomalous int     // ratio numerator under the configured mode
	Ratio     float64 // Anomalous / Records
}

// Report is the Stage C output
type Report struct {
	Cells    []FlaggedCell        // flagged cells in key order
	Records  []ais.PositionRecord // union of flagged cells' members, de-duplicated
	Excluded []ais.AnomalyKind    // kinds left out of the union for lacking a vessel id
	Keys     map[ais.RecordKey]grid.CellKey
}

// NewReport returns an empty report
func NewReport() Report {
	return Report{Records: []ais.PositionRecord{}, Keys: map[ais.RecordKey]grid.CellKey{}}
}

// Empty reports whether no cell was flagged
func (r Report) Empty() bool {
	return len(r.Cells) == 0
}

// CellOf returns the flagged cell a reported record came from
func (r Report) CellOf(rec ais.PositionRecord) (grid.CellKey, bool) {
	k, ok := r.Keys[rec.Key()]
	return k, ok
}

// hit is a flagged cell together with its full membership
type hit struct {
	cell    FlaggedCell
	records []ais.PositionRecord
}

// Checker evaluates grid cells against the anomalous-vessel union
type Checker struct {
	cfg am.ConsistencyConfig
	log *zap.SugaredLogger
}

// NewChecker creates a Stage C checker. A nil logger uses the global one.
func NewChecker(cfg am.ConsistencyConfig, log *zap.SugaredLogger) *Checker {
	if log == nil {
		log = logger.Logger
	}
	return &Checker{cfg: cfg, log: log}
}

// AnomalousVessels unions the vessel ids of every table that carries a vessel
// id column. Tables without one are skipped and their kinds returned.
func (c *Checker) AnomalousVessels(tables ...ais.AnomalyTable) (ais.AnomalySet, []ais.AnomalyKind) {
	union := ais.AnomalySet{}
	var excluded []ais.AnomalyKind
	for _, t := range tables {
		if !t.HasColumn(ais.ColVesselID) {
			err := errors.Wrapf(errors.ErrSchemaMismatch, "%s anomalies have no %s column", t.Kind, ais.ColVesselID)
			c.log.Warnw("excluding anomaly kind from consistency check",
				logger.FieldKind, t.Kind,
				logger.FieldError, err,
			)
			excluded = append(excluded, t.Kind)
			continue
		}
		union = union.Union(t.Vessels())
	}
	return union, excluded
}

// Evaluate decides whether a single cell is flagged. Cells below the minimum
// population are never flagged.
func (c *Checker) Evaluate(cell grid.Cell, anomalous ais.AnomalySet) (FlaggedCell, bool) {
	n := cell.Len()
	if n == 0 || n < c.cfg.MinCellPopulation {
		return FlaggedCell{}, false
	}

	var numerator int
	switch c.cfg.RatioMode {
	case am.RatioModeGlobalCount:
		numerator = anomalous.Len()
	default:
		numerator = anomalous.Overlap(cell.Vessels)
	}

	ratio := float64(numerator) / float64(n)
	if ratio < c.cfg.RatioThreshold {
		return FlaggedCell{}, false
	}
	return FlaggedCell{
		Key:       cell.Key,
		Bound:     cell.Bound(),
		Records:   n,
		Vessels:   cell.Vessels.Len(),
		Anomalous: numerator,
		Ratio:     ratio,
	}, true
}

// checkCells evaluates cells in order, stopping if ctx ends
func (c *Checker) checkCells(ctx context.Context, cells []grid.Cell, anomalous ais.AnomalySet) ([]hit, error) {
	var hits []hit
	for _, cell := range cells {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if fc, ok := c.Evaluate(cell, anomalous); ok {
			hits = append(hits, hit{cell: fc, records: cell.Records})
		}
	}
	return hits, nil
}

// Check runs Stage C on the calling goroutine
func (c *Checker) Check(ctx context.Context, idx grid.Index, tables []ais.AnomalyTable) (Report, error) {
	anomalous, excluded := c.AnomalousVessels(tables...)
	hits, err := c.checkCells(ctx, idx.Cells, anomalous)
	if err != nil {
		return NewReport(), err
	}
	report := merge(hits)
	report.Excluded = excluded
	return report, nil
}

// Run fans the grid cells out over the pool in balanced batches. A batch with
// no flagged cell yields the "no result" marker.
func (c *Checker) Run(ctx context.Context, idx grid.Index, tables []ais.AnomalyTable, opts pool.Options) (Report, pool.Stats) {
	anomalous, excluded := c.AnomalousVessels(tables...)

	batches := ais.BalancedBatches(idx.Cells, opts.Workers)
	results, stats := pool.Map(ctx, batches, func(ctx context.Context, batch []grid.Cell) ([]hit, bool, error) {
		hits, err := c.checkCells(ctx, batch, anomalous)
		return hits, len(hits) > 0, err
	}, opts)

	report := merge(pool.Flatten(results))
	report.Excluded = excluded

	c.log.Debugw("consistency check complete",
		logger.FieldCount, len(report.Cells),
		logger.FieldRecords, len(report.Records),
		"anomalous_vessels", anomalous.Len(),
		"mode", c.cfg.RatioMode,
	)
	return report, stats
}

// merge builds the record-level union of flagged cells, dropping records
// already contributed by an earlier cell.
func merge(hits []hit) Report {
	report := NewReport()
	for _, h := range hits {
		report.Cells = append(report.Cells, h.cell)
		for _, r := range h.records {
			k := r.Key()
			if _, dup := report.Keys[k]; dup {
				continue
			}
			report.Keys[k] = h.cell.Key
			report.Records = append(report.Records, r)
		}
	}
	return report
}

// String summarizes a flagged cell for log lines
func (f FlaggedCell) String() string {
	return fmt.Sprintf("cell %s: %d/%d = %.2f", f.Key, f.Anomalous, f.Records, f.Ratio)
}
