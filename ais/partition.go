package ais

import (
	"cmp"
	"slices"
)

// VesselTrack is the sequence of records for one vessel
type VesselTrack struct {
	VesselID int64
	Records  []PositionRecord
}

// Len returns the number of records in the track
func (t VesselTrack) Len() int {
	return len(t.Records)
}

// Sorted returns a copy of the track ordered by timestamp ascending.
// Records with equal timestamps keep their relative order. The receiver's
// slice is never modified, so tracks may be shared between stages.
func (t VesselTrack) Sorted() VesselTrack {
	records := slices.Clone(t.Records)
	slices.SortStableFunc(records, func(a, b PositionRecord) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return VesselTrack{VesselID: t.VesselID, Records: records}
}

// PartitionTracks groups records into one timestamp-sorted track per vessel.
// Every input record lands in exactly one track. Tracks are ordered by vessel id.
func PartitionTracks(records []PositionRecord) []VesselTrack {
	byVessel := make(map[int64][]PositionRecord)
	var order []int64
	for _, r := range records {
		if _, seen := byVessel[r.VesselID]; !seen {
			order = append(order, r.VesselID)
		}
		byVessel[r.VesselID] = append(byVessel[r.VesselID], r)
	}
	slices.Sort(order)

	tracks := make([]VesselTrack, 0, len(order))
	for _, id := range order {
		track := VesselTrack{VesselID: id, Records: byVessel[id]}
		tracks = append(tracks, track.Sorted())
	}
	return tracks
}

// BalancedBatches splits items into at most n contiguous batches of near-equal
// size. With len(items) = q*n + r, the first r batches hold q+1 items.
// Item order is preserved. No batch is empty; n < 1 is treated as 1.
func BalancedBatches[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	n = max(1, min(n, len(items)))

	q, r := len(items)/n, len(items)%n
	batches := make([][]T, 0, n)
	start := 0
	for i := range n {
		size := q
		if i < r {
			size++
		}
		batches = append(batches, items[start:start+size])
		start += size
	}
	return batches
}

// CountRecords sums the record counts of tracks
func CountRecords(tracks []VesselTrack) int {
	n := 0
	for _, t := range tracks {
		n += t.Len()
	}
	return n
}

// SortRecords orders records by vessel id then timestamp, in place
func SortRecords(records []PositionRecord) {
	slices.SortStableFunc(records, func(a, b PositionRecord) int {
		if c := cmp.Compare(a.VesselID, b.VesselID); c != 0 {
			return c
		}
		return a.Timestamp.Compare(b.Timestamp)
	})
}
