package detect

import (
	"context"
	"math"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/pulse/pool"
)

// KinematicResult holds the two Stage B tables
type KinematicResult struct {
	Speed  ais.AnomalyTable
	Course ais.AnomalyTable
}

// NewKinematicResult returns empty, well-typed Stage B tables
func NewKinematicResult() KinematicResult {
	return KinematicResult{
		Speed:  ais.NewTable(ais.KindSpeed),
		Course: ais.NewTable(ais.KindCourse),
	}
}

// Empty reports whether neither table has records
func (r KinematicResult) Empty() bool {
	return r.Speed.Len() == 0 && r.Course.Len() == 0
}

// Merge appends other's records after r's
func (r *KinematicResult) Merge(other KinematicResult) {
	r.Speed.Append(other.Speed.Records...)
	r.Course.Append(other.Course.Records...)
}

// KinematicDetector flags implausible speed and course behavior
type KinematicDetector struct {
	cfg am.KinematicConfig
}

// NewKinematicDetector creates a Stage B detector
func NewKinematicDetector(cfg am.KinematicConfig) *KinematicDetector {
	return &KinematicDetector{cfg: cfg}
}

// DetectTrack evaluates a single track.
//
// The SOG delta of the first fix, or of any fix next to a missing SOG, is
// absent and never triggers. The COG delta of the first fix, or next to a
// missing COG, is 0. Missing SOG or ROT values never trigger their ceilings.
func (d *KinematicDetector) DetectTrack(track ais.VesselTrack) KinematicResult {
	res := NewKinematicResult()
	sorted := track.Sorted()

	for i, r := range sorted.Records {
		deltas := ais.Deltas{COGDiff: ais.Float(0)}
		if i > 0 {
			prev := sorted.Records[i-1]
			if r.SOG.Valid && prev.SOG.Valid {
				deltas.SOGDiff = ais.Float(Round(math.Abs(r.SOG.Value-prev.SOG.Value), d.cfg.RoundDecimals))
			}
			if r.COG.Valid && prev.COG.Valid {
				deltas.COGDiff = ais.Float(Round(CourseDelta(prev.COG.Value, r.COG.Value), d.cfg.RoundDecimals))
			}
		}

		rec := ais.AnomalyRecord{PositionRecord: r, Deltas: deltas}
		if d.speedAnomaly(r, deltas) {
			res.Speed.Append(rec)
		}
		if d.courseAnomaly(r, deltas) {
			res.Course.Append(rec)
		}
	}
	return res
}

func (d *KinematicDetector) speedAnomaly(r ais.PositionRecord, deltas ais.Deltas) bool {
	if r.SOG.Valid && r.SOG.Value > d.cfg.MaxSpeedKnots {
		return true
	}
	return deltas.SOGDiff.Valid && deltas.SOGDiff.Value > d.cfg.SpeedJumpKnots
}

// courseAnomaly compares the shorter-arc delta, which never exceeds 180, so
// the course delta rule only fires for max_course_delta_deg below 180.
func (d *KinematicDetector) courseAnomaly(r ais.PositionRecord, deltas ais.Deltas) bool {
	if r.ROT.Valid && math.Abs(r.ROT.Value) > d.cfg.MaxRateOfTurn {
		return true
	}
	return deltas.COGDiff.Value > d.cfg.MaxCourseDeltaDeg
}

// DetectBatch evaluates tracks in order, stopping if ctx ends
func (d *KinematicDetector) DetectBatch(ctx context.Context, tracks []ais.VesselTrack) (KinematicResult, error) {
	res := NewKinematicResult()
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return NewKinematicResult(), err
		}
		res.Merge(d.DetectTrack(t))
	}
	return res, nil
}

// Run fans tracks out over the pool in balanced batches and merges the
// per-batch tables in batch order.
func (d *KinematicDetector) Run(ctx context.Context, tracks []ais.VesselTrack, opts pool.Options) (KinematicResult, pool.Stats) {
	batches := ais.BalancedBatches(tracks, opts.Workers)
	results, stats := pool.Map(ctx, batches, batchFunc(d.DetectBatch), opts)

	merged := NewKinematicResult()
	for _, r := range pool.Collect(results) {
		merged.Merge(r)
	}
	return merged, stats
}
