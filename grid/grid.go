// Package grid buckets position records into fixed-size lat/lon cells.
package grid

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/teranos/aisguard/ais"
)

// CellKey identifies a cell: X indexes longitude, Y indexes latitude
type CellKey struct {
	X int
	Y int
}

// String renders the key as "x,y"
func (k CellKey) String() string {
	return fmt.Sprintf("%d,%d", k.X, k.Y)
}

// Compare orders keys by X then Y
func (k CellKey) Compare(o CellKey) int {
	if c := cmp.Compare(k.X, o.X); c != 0 {
		return c
	}
	return cmp.Compare(k.Y, o.Y)
}

// CellOf returns the cell of a coordinate. Floor division places a point on a
// boundary in the upper cell and moves negative coordinates downward.
// Boundaries follow float64 division, so 1.2/0.4 = 2.9999999999999996 puts
// latitude 1.2 in row 2.
func CellOf(lat, lon, size float64) CellKey {
	return CellKey{
		X: int(math.Floor(lon / size)),
		Y: int(math.Floor(lat / size)),
	}
}

// Cell is one bucket of the grid with its member records
type Cell struct {
	Key     CellKey
	Size    float64
	Records []ais.PositionRecord
	Vessels ais.AnomalySet
}

// Len returns the number of member records
func (c Cell) Len() int {
	return len(c.Records)
}

// Bound returns the geographic extent of the cell
func (c Cell) Bound() orb.Bound {
	minLon := float64(c.Key.X) * c.Size
	minLat := float64(c.Key.Y) * c.Size
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + c.Size, minLat + c.Size},
	}
}

// Index is the grid built for one run
type Index struct {
	Size  float64
	Cells []Cell // ordered by key
}

// Build assigns every record to its cell. Records are copied into the cells;
// the input slice is not retained. Membership does not depend on input order.
func Build(records []ais.PositionRecord, size float64) Index {
	byKey := make(map[CellKey]*Cell)
	for _, r := range records {
		key := CellOf(r.Latitude, r.Longitude, size)
		cell, ok := byKey[key]
		if !ok {
			cell = &Cell{Key: key, Size: size, Vessels: ais.AnomalySet{}}
			byKey[key] = cell
		}
		cell.Records = append(cell.Records, r)
		cell.Vessels.Add(r.VesselID)
	}

	cells := make([]Cell, 0, len(byKey))
	for _, c := range byKey {
		cells = append(cells, *c)
	}
	slices.SortFunc(cells, func(a, b Cell) int {
		return a.Key.Compare(b.Key)
	})
	return Index{Size: size, Cells: cells}
}

// Len returns the number of non-empty cells
func (idx Index) Len() int {
	return len(idx.Cells)
}

// Lookup returns the cell with the given key
func (idx Index) Lookup(key CellKey) (Cell, bool) {
	i, found := slices.BinarySearchFunc(idx.Cells, key, func(c Cell, k CellKey) int {
		return c.Key.Compare(k)
	})
	if !found {
		return Cell{}, false
	}
	return idx.Cells[i], true
}

// Populated returns the cells holding at least min records
func (idx Index) Populated(min int) []Cell {
	var out []Cell
	for _, c := range idx.Cells {
		if c.Len() >= min {
			out = append(out, c)
		}
	}
	return out
}
