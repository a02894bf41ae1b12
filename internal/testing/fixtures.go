package testing

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/teranos/aisguard/ais"
)

// BaseTime is the timestamp of minute 0 in fixtures
var BaseTime = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

// Fix builds a position-only record at the given minute offset
func Fix(vessel int64, minute int, lat, lon float64) ais.PositionRecord {
	return ais.PositionRecord{
		VesselID:  vessel,
		Timestamp: BaseTime.Add(time.Duration(minute) * time.Minute),
		Latitude:  lat,
		Longitude: lon,
	}
}

// Kin builds a record with speed, course and rate of turn
func Kin(vessel int64, minute int, lat, lon, sog, cog, rot float64) ais.PositionRecord {
	r := Fix(vessel, minute, lat, lon)
	r.SOG = ais.Float(sog)
	r.COG = ais.Float(cog)
	r.ROT = ais.Float(rot)
	return r
}

// ThreeVessels returns vessel 1 jumping from (0, 0) to (0, 2), vessel 2
// parked on the (91.0, 0.0) sentinel, and vessel 3 sailing cleanly.
func ThreeVessels() []ais.PositionRecord {
	return []ais.PositionRecord{
		Kin(1, 0, 0, 0, 10, 90, 0),
		Kin(1, 1, 0, 2, 10, 90, 0),
		Kin(2, 0, 91.0, 0.0, 0, 0, 0),
		Kin(3, 0, 55.00, 10.00, 12, 45, 0),
		Kin(3, 1, 55.01, 10.01, 12, 45, 0),
		Kin(3, 2, 55.02, 10.02, 12, 46, 0),
	}
}

// CrowdedCell returns n vessels with one clean fix each inside the 0.4 degree
// cell at (lat, lon), with vessel ids starting at first.
func CrowdedCell(first int64, n int, lat, lon float64) []ais.PositionRecord {
	out := make([]ais.PositionRecord, n)
	for i := range n {
		out[i] = Kin(first+int64(i), i, lat, lon, 5, 180, 0)
	}
	return out
}

// AISHeader is the aisdk export header, including columns the loader ignores
var AISHeader = []string{
	"# Timestamp", "Type of mobile", "MMSI", "Latitude", "Longitude",
	"Navigational status", "ROT", "SOG", "COG", "Heading", "IMO", "Name",
}

// WriteAISCSV writes records in aisdk layout and returns the file path
func WriteAISCSV(t *testing.T, name string, records []ais.PositionRecord) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture %s: %v", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{AISHeader}
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.Format("02/01/2006 15:04:05"),
			"Class A",
			strconv.FormatInt(r.VesselID, 10),
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64),
			"Under way using engine",
			r.ROT.String(),
			r.SOG.String(),
			r.COG.String(),
			"",
			"Unknown",
			"",
		})
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", path, err)
	}
	return path
}
