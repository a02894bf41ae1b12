// Package ais defines the vessel telemetry records the detectors operate on
// and the tabular anomaly results they produce.
package ais

import (
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// Column names as they appear in aisdk CSV exports
const (
	ColTimestamp = "# Timestamp"
	ColVesselID  = "MMSI"
	ColLatitude  = "Latitude"
	ColLongitude = "Longitude"
	ColROT       = "ROT"
	ColSOG       = "SOG"
	ColCOG       = "COG"
)

// Derived columns added by the detectors and the grid checker
const (
	ColLatDiff = "lat_diff"
	ColLonDiff = "lon_diff"
	ColJumpKm  = "jump_km"
	ColSOGDiff = "sog_diff"
	ColCOGDiff = "cog_diff"
	ColCellX   = "grid_x"
	ColCellY   = "grid_y"
)

// BaseColumns are the source columns every result table carries, in output order
var BaseColumns = []string{ColTimestamp, ColVesselID, ColLatitude, ColLongitude, ColROT, ColSOG, ColCOG}

// NullFloat is a float64 that may be absent. AIS exports leave SOG, COG and ROT
// blank when the transponder did not report them.
type NullFloat struct {
	Value float64
	Valid bool
}

// Float returns a valid NullFloat holding v
func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

// String formats the value for CSV output; absent values render empty
func (n NullFloat) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// PositionRecord is one cleaned AIS fix. Records are values and are never
// mutated after cleaning; detectors work on copies.
type PositionRecord struct {
	VesselID  int64
	Timestamp time.Time
	Latitude  float64
	Longitude float64
	SOG       NullFloat
	COG       NullFloat
	ROT       NullFloat
}

// Point returns the record position as an orb point (lon, lat)
func (r PositionRecord) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

// RecordKey identifies a record for de-duplication
type RecordKey struct {
	VesselID  int64
	UnixNano  int64
	Latitude  float64
	Longitude float64
	SOG       NullFloat
	COG       NullFloat
	ROT       NullFloat
}

// Key returns the identity of r. Two records with equal keys are exact duplicates.
func (r PositionRecord) Key() RecordKey {
	return RecordKey{
		VesselID:  r.VesselID,
		UnixNano:  r.Timestamp.UnixNano(),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		SOG:       r.SOG,
		COG:       r.COG,
		ROT:       r.ROT,
	}
}
