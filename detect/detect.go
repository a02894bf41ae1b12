// Package detect holds the per-vessel anomaly detectors.
//
// Both detectors are pure over a single track: they sort a private copy of the
// track by timestamp, difference consecutive fixes and emit tagged records.
// Stage-level Run methods fan tracks out through pulse/pool in balanced batches.
package detect

import (
	"context"
	"math"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/pulse/pool"
)

// Round rounds v to the given number of decimal places. Negative decimals
// disable rounding.
func Round(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// CourseDelta returns the shorter-arc difference between two headings in
// degrees, in [0, 180]. CourseDelta(350, 10) is 20.
func CourseDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(b-a), 360)
	return math.Min(d, 360-d)
}

// batchFunc adapts a per-batch detector into a pool function. A batch that
// flags nothing yields the "no result" marker.
func batchFunc[R interface{ Empty() bool }](detect func(context.Context, []ais.VesselTrack) (R, error)) pool.Func[[]ais.VesselTrack, R] {
	return func(ctx context.Context, batch []ais.VesselTrack) (R, bool, error) {
		res, err := detect(ctx, batch)
		if err != nil {
			var zero R
			return zero, false, err
		}
		return res, !res.Empty(), nil
	}
}
