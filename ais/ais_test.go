package ais

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func rec(vessel int64, offset time.Duration, lat, lon float64) PositionRecord {
	return PositionRecord{VesselID: vessel, Timestamp: t0.Add(offset), Latitude: lat, Longitude: lon}
}

func TestPartitionTracks(t *testing.T) {
	records := []PositionRecord{
		rec(300, 2*time.Minute, 55.2, 10.1),
		rec(100, time.Minute, 55.0, 10.0),
		rec(300, 0, 55.1, 10.0),
		rec(100, 0, 54.9, 10.0),
		rec(200, 0, 56.0, 11.0),
	}

	tracks := PartitionTracks(records)
	require.Len(t, tracks, 3)

	assert.Equal(t, int64(100), tracks[0].VesselID)
	assert.Equal(t, int64(200), tracks[1].VesselID)
	assert.Equal(t, int64(300), tracks[2].VesselID)

	// Internally ordered by timestamp
	assert.Equal(t, 54.9, tracks[0].Records[0].Latitude)
	assert.Equal(t, 55.0, tracks[0].Records[1].Latitude)
	assert.Equal(t, 55.1, tracks[2].Records[0].Latitude)

	// Nothing dropped or duplicated
	assert.Equal(t, len(records), CountRecords(tracks))

	// Input untouched
	assert.Equal(t, int64(300), records[0].VesselID)
	assert.Equal(t, 55.2, records[0].Latitude)
}

func TestPartitionTracksEmpty(t *testing.T) {
	assert.Empty(t, PartitionTracks(nil))
}

func TestSortedDoesNotMutate(t *testing.T) {
	track := VesselTrack{VesselID: 1, Records: []PositionRecord{
		rec(1, time.Hour, 1, 1),
		rec(1, 0, 2, 2),
	}}

	sorted := track.Sorted()
	assert.Equal(t, 2.0, sorted.Records[0].Latitude)
	assert.Equal(t, 1.0, track.Records[0].Latitude, "original slice must keep its order")
}

func TestSortedStableForEqualTimestamps(t *testing.T) {
	track := VesselTrack{VesselID: 1, Records: []PositionRecord{
		rec(1, 0, 1, 1),
		rec(1, 0, 2, 2),
		rec(1, 0, 3, 3),
	}}
	sorted := track.Sorted()
	assert.Equal(t, []float64{1, 2, 3}, []float64{
		sorted.Records[0].Latitude, sorted.Records[1].Latitude, sorted.Records[2].Latitude,
	})
}

func TestBalancedBatches(t *testing.T) {
	tests := []struct {
		name  string
		items int
		n     int
		sizes []int
	}{
		{name: "even split", items: 8, n: 4, sizes: []int{2, 2, 2, 2}},
		{name: "remainder goes to first batches", items: 10, n: 4, sizes: []int{3, 3, 2, 2}},
		{name: "fewer items than workers", items: 2, n: 4, sizes: []int{1, 1}},
		{name: "single worker", items: 5, n: 1, sizes: []int{5}},
		{name: "zero workers treated as one", items: 3, n: 0, sizes: []int{3}},
		{name: "no items", items: 0, n: 4, sizes: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]int, tt.items)
			for i := range items {
				items[i] = i
			}

			batches := BalancedBatches(items, tt.n)
			var sizes []int
			var flat []int
			for _, b := range batches {
				sizes = append(sizes, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.sizes, sizes)
			if tt.items > 0 {
				assert.Equal(t, items, flat, "batching must preserve order")
			}
		})
	}
}

func TestAnomalySet(t *testing.T) {
	a := AnomalySet{}
	a.Add(1)
	a.Add(2)
	b := AnomalySet{}
	b.Add(2)
	b.Add(3)

	u := a.Union(b)
	assert.Equal(t, []int64{1, 2, 3}, u.Sorted())
	assert.Equal(t, 1, a.Overlap(b))
	assert.Equal(t, 2, a.Len(), "union must not modify the receiver")
	assert.True(t, u.Has(3))
	assert.False(t, a.Has(3))
}

func TestAnomalyTable(t *testing.T) {
	table := NewTable(KindSpeed)
	assert.True(t, table.HasColumn(ColVesselID))
	assert.True(t, table.HasColumn(ColSOGDiff))
	assert.False(t, table.HasColumn(ColJumpKm))

	table.Append(
		AnomalyRecord{PositionRecord: rec(7, 0, 1, 1)},
		AnomalyRecord{PositionRecord: rec(7, time.Minute, 1, 1)},
		AnomalyRecord{PositionRecord: rec(8, 0, 1, 1)},
	)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, KindSpeed, table.Records[0].Kind)
	assert.Equal(t, []int64{7, 8}, table.Vessels().Sorted())
}

func TestNullFloatString(t *testing.T) {
	assert.Equal(t, "", NullFloat{}.String())
	assert.Equal(t, "12.5", Float(12.5).String())
	assert.Equal(t, "0", Float(0).String())
}

func TestRecordKey(t *testing.T) {
	a := rec(1, 0, 55.5, 10.25)
	b := a
	assert.Equal(t, a.Key(), b.Key())

	b.SOG = Float(3)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestPoint(t *testing.T) {
	p := rec(1, 0, 55.5, 10.25).Point()
	assert.Equal(t, 10.25, p.Lon())
	assert.Equal(t, 55.5, p.Lat())
}
