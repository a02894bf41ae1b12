package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
)

// ReadTable loads a result table written by Writer. The kind is taken from
// the file name and the columns from the header, so a table edited or
// produced elsewhere keeps whatever schema it has. Rows whose vessel id
// cannot be read are kept with a zero id only when the table has no vessel
// id column at all. A zero-byte file is an empty table with the default
// columns of its kind.
func ReadTable(path string) (ais.AnomalyTable, error) {
	kind, ok := KindForFile(path)
	if !ok {
		return ais.AnomalyTable{}, errors.Wrapf(errors.ErrInvalidInput, "%s is not an anomaly table", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return ais.AnomalyTable{}, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return ais.NewTable(kind), nil
	}
	if err != nil {
		return ais.AnomalyTable{}, errors.Wrapf(err, "failed to read header of %s", path)
	}

	table := ais.AnomalyTable{Kind: kind}
	idx := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(col)
		table.Columns = append(table.Columns, col)
		idx[col] = i
	}

	get := func(row []string, col string) (string, bool) {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}
	float := func(row []string, col string) ais.NullFloat {
		s, ok := get(row, col)
		if !ok || s == "" {
			return ais.NullFloat{}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ais.NullFloat{}
		}
		return ais.Float(v)
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return table, errors.Wrapf(err, "%s line %d", path, line)
		}

		var rec ais.AnomalyRecord
		rec.Kind = kind
		if s, ok := get(row, ais.ColVesselID); ok {
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return table, errors.Wrapf(errors.ErrInvalidInput, "%s line %d: vessel id %q", path, line, s)
			}
			rec.VesselID = id
		}
		if s, ok := get(row, ais.ColTimestamp); ok {
			if ts, err := time.Parse(am.DefaultTimestampLayout, s); err == nil {
				rec.Timestamp = ts
			}
		}
		rec.Latitude = float(row, ais.ColLatitude).Value
		rec.Longitude = float(row, ais.ColLongitude).Value
		rec.SOG = float(row, ais.ColSOG)
		rec.COG = float(row, ais.ColCOG)
		rec.ROT = float(row, ais.ColROT)
		rec.Deltas = ais.Deltas{
			LatDiff: float(row, ais.ColLatDiff),
			LonDiff: float(row, ais.ColLonDiff),
			JumpKm:  float(row, ais.ColJumpKm),
			SOGDiff: float(row, ais.ColSOGDiff),
			COGDiff: float(row, ais.ColCOGDiff),
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}
