package detect

import (
	"context"
	"math"

	"github.com/paulmach/orb/geo"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/pulse/pool"
)

// LocationResult holds the two Stage A tables
type LocationResult struct {
	Jumps   ais.AnomalyTable
	Invalid ais.AnomalyTable
}

// NewLocationResult returns empty, well-typed Stage A tables
func NewLocationResult() LocationResult {
	return LocationResult{
		Jumps:   ais.NewTable(ais.KindLocationJump),
		Invalid: ais.NewTable(ais.KindInvalidFix),
	}
}

// Empty reports whether neither table has records
func (r LocationResult) Empty() bool {
	return r.Jumps.Len() == 0 && r.Invalid.Len() == 0
}

// Merge appends other's records after r's
func (r *LocationResult) Merge(other LocationResult) {
	r.Jumps.Append(other.Jumps.Records...)
	r.Invalid.Append(other.Invalid.Records...)
}

// LocationDetector flags teleport-like position jumps and the AIS
// "no position" sentinel fix.
type LocationDetector struct {
	cfg am.LocationConfig
}

// NewLocationDetector creates a Stage A detector
func NewLocationDetector(cfg am.LocationConfig) *LocationDetector {
	return &LocationDetector{cfg: cfg}
}

// DetectTrack evaluates a single track. The first fix of a track has no
// predecessor and is never a jump; it can still be an invalid fix.
func (d *LocationDetector) DetectTrack(track ais.VesselTrack) LocationResult {
	res := NewLocationResult()
	sorted := track.Sorted()

	for i, r := range sorted.Records {
		var deltas ais.Deltas
		jump := false
		if i > 0 {
			prev := sorted.Records[i-1]
			latDiff := Round(math.Abs(r.Latitude-prev.Latitude), d.cfg.RoundDecimals)
			lonDiff := Round(math.Abs(r.Longitude-prev.Longitude), d.cfg.RoundDecimals)
			deltas.LatDiff = ais.Float(latDiff)
			deltas.LonDiff = ais.Float(lonDiff)
			jump = latDiff > d.cfg.JumpThresholdDeg || lonDiff > d.cfg.JumpThresholdDeg
			if jump {
				km := geo.Distance(prev.Point(), r.Point()) / 1000
				deltas.JumpKm = ais.Float(Round(km, 3))
			}
		}

		if jump {
			res.Jumps.Append(ais.AnomalyRecord{PositionRecord: r, Deltas: deltas})
		}
		if d.isInvalidFix(r) {
			res.Invalid.Append(ais.AnomalyRecord{PositionRecord: r, Deltas: ais.Deltas{
				LatDiff: deltas.LatDiff,
				LonDiff: deltas.LonDiff,
			}})
		}
	}
	return res
}

// isInvalidFix matches the sentinel position exactly; 90.999 is a real fix
func (d *LocationDetector) isInvalidFix(r ais.PositionRecord) bool {
	return r.Latitude == d.cfg.InvalidLatitude && r.Longitude == d.cfg.InvalidLongitude
}

// DetectBatch evaluates tracks in order, stopping if ctx ends
func (d *LocationDetector) DetectBatch(ctx context.Context, tracks []ais.VesselTrack) (LocationResult, error) {
	res := NewLocationResult()
	for _, t := range tracks {
		if err := ctx.Err(); err != nil {
			return NewLocationResult(), err
		}
		res.Merge(d.DetectTrack(t))
	}
	return res, nil
}

// Run fans tracks out over the pool in balanced batches and merges the
// per-batch tables in batch order.
func (d *LocationDetector) Run(ctx context.Context, tracks []ais.VesselTrack, opts pool.Options) (LocationResult, pool.Stats) {
	batches := ais.BalancedBatches(tracks, opts.Workers)
	results, stats := pool.Map(ctx, batches, batchFunc(d.DetectBatch), opts)

	merged := NewLocationResult()
	for _, r := range pool.Collect(results) {
		merged.Merge(r)
	}
	return merged, stats
}
