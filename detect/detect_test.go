package detect

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/pulse/pool"
)

var t0 = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func fix(vessel int64, minute int, lat, lon float64) ais.PositionRecord {
	return ais.PositionRecord{
		VesselID:  vessel,
		Timestamp: t0.Add(time.Duration(minute) * time.Minute),
		Latitude:  lat,
		Longitude: lon,
	}
}

func kin(vessel int64, minute int, sog, cog, rot float64) ais.PositionRecord {
	r := fix(vessel, minute, 55, 10)
	r.SOG = ais.Float(sog)
	r.COG = ais.Float(cog)
	r.ROT = ais.Float(rot)
	return r
}

func shuffled(records []ais.PositionRecord, seed int64) []ais.PositionRecord {
	out := append([]ais.PositionRecord(nil), records...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func poolOpts(workers int) pool.Options {
	return pool.Options{Workers: workers, Name: "test", Logger: zap.NewNop().Sugar()}
}

func TestCourseDelta(t *testing.T) {
	tests := []struct {
		a, b, want float64
	}{
		{350, 10, 20},
		{10, 350, 20},
		{0, 180, 180},
		{90, 90, 0},
		{0, 359, 1},
		{45, 135, 90},
		{720, 10, 10},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CourseDelta(tt.a, tt.b), 1e-9, "CourseDelta(%v, %v)", tt.a, tt.b)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.5, Round(0.5000000001, 6))
	assert.Equal(t, 1.23, Round(1.234, 2))
	assert.Equal(t, 1.234, Round(1.234, -1))
}

func TestLocationJump(t *testing.T) {
	d := NewLocationDetector(am.Default().Location)
	track := ais.VesselTrack{VesselID: 1, Records: []ais.PositionRecord{
		fix(1, 0, 0, 0),
		fix(1, 1, 0, 2),
		fix(1, 2, 0, 2.1),
	}}

	res := d.DetectTrack(track)
	require.Equal(t, 1, res.Jumps.Len())
	got := res.Jumps.Records[0]
	assert.Equal(t, 2.0, got.Longitude)
	assert.Equal(t, ais.KindLocationJump, got.Kind)
	assert.Equal(t, ais.Float(2), got.Deltas.LonDiff)
	assert.Equal(t, ais.Float(0), got.Deltas.LatDiff)
	assert.True(t, got.Deltas.JumpKm.Valid)
	assert.InDelta(t, 222.4, got.Deltas.JumpKm.Value, 1.0)
	assert.Zero(t, res.Invalid.Len())
}

func TestLocationJumpThresholdIsStrict(t *testing.T) {
	d := NewLocationDetector(am.Default().Location)
	track := ais.VesselTrack{VesselID: 1, Records: []ais.PositionRecord{
		fix(1, 0, 55.1, 10.1),
		fix(1, 1, 55.6, 10.1), // exactly 0.5 after rounding
	}}
	assert.Zero(t, d.DetectTrack(track).Jumps.Len())
}

func TestInvalidFix(t *testing.T) {
	d := NewLocationDetector(am.Default().Location)
	track := ais.VesselTrack{VesselID: 9, Records: []ais.PositionRecord{
		fix(9, 0, 91.0, 0.0),
		fix(9, 1, 91.0, 0.0),
		fix(9, 2, 90.999, 0.0),
		fix(9, 3, 91.0, 0.001),
	}}

	res := d.DetectTrack(track)
	require.Equal(t, 2, res.Invalid.Len(), "only exact (91.0, 0.0) fixes are invalid")
	for _, r := range res.Invalid.Records {
		assert.Equal(t, 91.0, r.Latitude)
		assert.Equal(t, 0.0, r.Longitude)
	}
	// The first invalid fix has no predecessor
	assert.False(t, res.Invalid.Records[0].Deltas.LatDiff.Valid)
}

func TestInvalidFixAlsoJump(t *testing.T) {
	d := NewLocationDetector(am.Default().Location)
	track := ais.VesselTrack{VesselID: 2, Records: []ais.PositionRecord{
		fix(2, 0, 55.0, 10.0),
		fix(2, 1, 91.0, 0.0),
	}}

	res := d.DetectTrack(track)
	assert.Equal(t, 1, res.Jumps.Len())
	assert.Equal(t, 1, res.Invalid.Len(), "a record may appear in both tables")
}

func TestLocationSortInvariance(t *testing.T) {
	d := NewLocationDetector(am.Default().Location)
	records := []ais.PositionRecord{
		fix(1, 0, 55.0, 10.0),
		fix(1, 1, 55.1, 10.0),
		fix(1, 2, 56.0, 10.0),
		fix(1, 3, 56.0, 12.0),
		fix(1, 4, 91.0, 0.0),
		fix(1, 5, 55.0, 10.0),
		fix(1, 6, 55.2, 10.3),
	}

	sorted := d.DetectTrack(ais.VesselTrack{VesselID: 1, Records: records})
	for seed := int64(1); seed <= 5; seed++ {
		got := d.DetectTrack(ais.VesselTrack{VesselID: 1, Records: shuffled(records, seed)})
		assert.Equal(t, sorted, got, "seed %d", seed)
	}

	// Re-running on already-sorted input is idempotent
	assert.Equal(t, sorted, d.DetectTrack(ais.VesselTrack{VesselID: 1, Records: records}))
}

func TestSpeedAnomalies(t *testing.T) {
	d := NewKinematicDetector(am.Default().Kinematic)
	track := ais.VesselTrack{VesselID: 5, Records: []ais.PositionRecord{
		kin(5, 0, 10, 90, 0),
		kin(5, 1, 12, 90, 0),   // delta 2
		kin(5, 2, 18, 90, 0),   // delta 6 -> anomaly
		kin(5, 3, 51, 90, 0),   // ceiling -> anomaly
		kin(5, 4, 50.5, 90, 0), // ceiling -> anomaly
		kin(5, 5, 50, 90, 0),   // not above ceiling, delta 0.5
	}}

	res := d.DetectTrack(track)
	require.Equal(t, 3, res.Speed.Len())
	assert.Equal(t, 18.0, res.Speed.Records[0].SOG.Value)
	assert.Equal(t, ais.Float(6), res.Speed.Records[0].Deltas.SOGDiff)
	assert.Equal(t, 51.0, res.Speed.Records[1].SOG.Value)
	assert.Zero(t, res.Course.Len())
}

func TestSpeedFirstFixHasNoDelta(t *testing.T) {
	d := NewKinematicDetector(am.Default().Kinematic)
	res := d.DetectTrack(ais.VesselTrack{VesselID: 5, Records: []ais.PositionRecord{kin(5, 0, 49, 0, 0)}})
	assert.Zero(t, res.Speed.Len())
}

func TestCourseAnomalies(t *testing.T) {
	d := NewKinematicDetector(am.Default().Kinematic)
	track := ais.VesselTrack{VesselID: 6, Records: []ais.PositionRecord{
		kin(6, 0, 10, 350, 0),
		kin(6, 1, 10, 10, 0),   // 20 degree turn
		kin(6, 2, 10, 10, -31), // ROT ceiling
		kin(6, 3, 10, 190, 30), // 180 turn, not above default max
	}}

	res := d.DetectTrack(track)
	require.Equal(t, 1, res.Course.Len())
	assert.Equal(t, -31.0, res.Course.Records[0].ROT.Value)

	second := d.DetectTrack(track).Course
	assert.Equal(t, res.Course, second)
}

func TestCourseDeltaThresholdConfigurable(t *testing.T) {
	cfg := am.Default().Kinematic
	cfg.MaxCourseDeltaDeg = 100
	d := NewKinematicDetector(cfg)
	track := ais.VesselTrack{VesselID: 6, Records: []ais.PositionRecord{
		kin(6, 0, 10, 350, 0),
		kin(6, 1, 10, 10, 0),
		kin(6, 2, 10, 190, 0),
	}}

	res := d.DetectTrack(track)
	require.Equal(t, 1, res.Course.Len())
	assert.Equal(t, ais.Float(180), res.Course.Records[0].Deltas.COGDiff)
}

func TestKinematicNullValues(t *testing.T) {
	d := NewKinematicDetector(am.Default().Kinematic)
	missing := fix(7, 1, 55, 10) // no SOG, COG or ROT

	track := ais.VesselTrack{VesselID: 7, Records: []ais.PositionRecord{
		kin(7, 0, 10, 0, 0),
		missing,
		kin(7, 2, 30, 170, 0),
	}}

	res := d.DetectTrack(track)
	assert.Zero(t, res.Speed.Len(), "deltas next to a missing SOG are absent")
	assert.Zero(t, res.Course.Len(), "deltas next to a missing COG are 0")
}

func TestKinematicSortInvariance(t *testing.T) {
	d := NewKinematicDetector(am.Default().Kinematic)
	records := []ais.PositionRecord{
		kin(3, 0, 10, 10, 0),
		kin(3, 1, 20, 20, 0),
		kin(3, 2, 21, 350, 35),
		kin(3, 3, 60, 340, 0),
		kin(3, 4, 12, 330, -40),
		kin(3, 5, 12, 320, 0),
	}

	want := d.DetectTrack(ais.VesselTrack{VesselID: 3, Records: records})
	for seed := int64(1); seed <= 5; seed++ {
		got := d.DetectTrack(ais.VesselTrack{VesselID: 3, Records: shuffled(records, seed)})
		assert.Equal(t, want, got, "seed %d", seed)
	}
}

func TestThreeVesselScenario(t *testing.T) {
	records := []ais.PositionRecord{
		// Vessel 1 jumps two degrees in a single step
		fix(1, 0, 0, 0),
		fix(1, 1, 0, 2),
		// Vessel 2 reports the "no position" sentinel
		fix(2, 0, 91.0, 0.0),
		// Vessel 3 is clean
		fix(3, 0, 55.0, 10.0),
		fix(3, 1, 55.01, 10.01),
		fix(3, 2, 55.02, 10.02),
	}

	d := NewLocationDetector(am.Default().Location)
	res, stats := d.Run(context.Background(), ais.PartitionTracks(records), poolOpts(2))

	require.Equal(t, 1, res.Jumps.Len())
	require.Equal(t, 1, res.Invalid.Len())
	assert.Equal(t, int64(1), res.Jumps.Records[0].VesselID)
	assert.Equal(t, int64(2), res.Invalid.Records[0].VesselID)
	assert.False(t, res.Jumps.Vessels().Has(3))
	assert.False(t, res.Invalid.Vessels().Has(3))
	assert.Zero(t, stats.Failed)
}

func TestRunMatchesSequential(t *testing.T) {
	var records []ais.PositionRecord
	for v := int64(1); v <= 9; v++ {
		for m := 0; m < 6; m++ {
			sog := float64(m*int(v)) * 1.5
			records = append(records, kin(v, m, sog, float64(m*70%360), float64(m*int(v)%45)))
		}
	}
	tracks := ais.PartitionTracks(records)
	d := NewKinematicDetector(am.Default().Kinematic)

	seq, err := d.DetectBatch(context.Background(), tracks)
	require.NoError(t, err)

	for _, workers := range []int{1, 2, 4, 16} {
		par, _ := d.Run(context.Background(), tracks, poolOpts(workers))
		assert.Equal(t, seq, par, "workers=%d", workers)
	}
}

func TestRunAllNoResult(t *testing.T) {
	tracks := ais.PartitionTracks([]ais.PositionRecord{
		fix(1, 0, 55, 10),
		fix(2, 0, 56, 11),
	})

	res, stats := NewLocationDetector(am.Default().Location).Run(context.Background(), tracks, poolOpts(2))
	assert.True(t, res.Empty())
	assert.True(t, res.Jumps.HasColumn(ais.ColVesselID), "empty result keeps its schema")
	assert.Equal(t, 2, stats.Empty)
}

func TestDetectBatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tracks := ais.PartitionTracks([]ais.PositionRecord{fix(1, 0, 0, 0), fix(1, 1, 0, 2)})
	res, err := NewLocationDetector(am.Default().Location).DetectBatch(ctx, tracks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Empty())
}
