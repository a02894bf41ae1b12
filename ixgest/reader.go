package ixgest

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
)

// ProgressInterval bounds how often row progress is logged
const ProgressInterval = 2 * time.Second

// requiredColumns must be present in the header. Everything else an aisdk
// export carries (ship type, name, draught, ...) is ignored.
var requiredColumns = []string{
	ais.ColTimestamp, ais.ColVesselID, ais.ColLatitude, ais.ColLongitude,
	ais.ColROT, ais.ColSOG, ais.ColCOG,
}

// Stats counts what the cleaner did with input rows
type Stats struct {
	Rows             int // data rows read
	Kept             int
	DroppedMissing   int // no timestamp, latitude or longitude
	DroppedInvalid   int // unparseable timestamp, position or vessel id
	DroppedDuplicate int // exact duplicates within a chunk
	Chunks           int
}

// Dropped returns the total number of rows removed by cleaning
func (s Stats) Dropped() int {
	return s.DroppedMissing + s.DroppedInvalid + s.DroppedDuplicate
}

// Reader streams cleaned position records from an aisdk CSV export
type Reader struct {
	csv       *csv.Reader
	closer    io.Closer
	cols      map[string]int
	layout    string
	chunkSize int
	stats     Stats
	done      bool
	log       *zap.SugaredLogger
	progress  rate.Sometimes
}

// NewReader reads the header from r and resolves the required columns.
// A header missing any of them is rejected with errors.ErrInvalidInput.
func NewReader(r io.Reader, cfg am.IngestConfig, log *zap.SugaredLogger) (*Reader, error) {
	if log == nil {
		log = logger.ComponentLogger("ixgest")
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty input: no header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		cols[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			err := errors.Wrapf(errors.ErrInvalidInput, "missing column %q", name)
			return nil, errors.WithHint(err, "input must be an aisdk CSV export")
		}
	}

	layout := cfg.TimestampLayout
	if layout == "" {
		layout = am.DefaultTimestampLayout
	}

	return &Reader{
		csv:       cr,
		cols:      cols,
		layout:    layout,
		chunkSize: cfg.ChunkSize,
		log:       log,
		progress:  rate.Sometimes{Interval: ProgressInterval},
	}, nil
}

// OpenFile opens path (plain, .gz or .zst) and returns a Reader over it.
// Close releases the file.
func OpenFile(path string, cfg am.IngestConfig, log *zap.SugaredLogger) (*Reader, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(rc, cfg, log)
	if err != nil {
		rc.Close()
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	r.closer = rc
	return r, nil
}

// Close releases the underlying file, if any
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Stats returns the cleaning counters so far
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next chunk of cleaned records. With a chunk size of zero
// the whole input is one chunk. It returns io.EOF once the input is exhausted.
func (r *Reader) Next(ctx context.Context) ([]ais.PositionRecord, error) {
	if r.done {
		return nil, io.EOF
	}

	var records []ais.PositionRecord
	seen := make(map[ais.RecordKey]struct{})
	read := 0

	for r.chunkSize <= 0 || read < r.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.csv.Read()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				r.stats.Rows++
				r.stats.DroppedInvalid++
				read++
				r.log.Debugw("skipping malformed row", logger.FieldError, err)
				continue
			}
			return nil, errors.Wrap(err, "failed to read row")
		}
		read++
		r.stats.Rows++

		rec, ok := r.clean(row)
		if !ok {
			continue
		}
		key := rec.Key()
		if _, dup := seen[key]; dup {
			r.stats.DroppedDuplicate++
			continue
		}
		seen[key] = struct{}{}
		records = append(records, rec)
		r.stats.Kept++

		r.progress.Do(func() {
			r.log.Infow("ingesting", "rows", r.stats.Rows, "kept", r.stats.Kept)
		})
	}

	if read == 0 {
		return nil, io.EOF
	}
	r.stats.Chunks++
	if records == nil {
		records = []ais.PositionRecord{}
	}
	return records, nil
}

// clean parses one row. Rows without a timestamp or position are dropped;
// blank or unparseable SOG, COG and ROT become absent values.
func (r *Reader) clean(row []string) (ais.PositionRecord, bool) {
	field := func(name string) string {
		i := r.cols[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	tsRaw, latRaw, lonRaw := field(ais.ColTimestamp), field(ais.ColLatitude), field(ais.ColLongitude)
	if tsRaw == "" || latRaw == "" || lonRaw == "" {
		r.stats.DroppedMissing++
		return ais.PositionRecord{}, false
	}

	ts, err := time.Parse(r.layout, tsRaw)
	if err != nil {
		r.stats.DroppedInvalid++
		return ais.PositionRecord{}, false
	}
	lat, errLat := strconv.ParseFloat(latRaw, 64)
	lon, errLon := strconv.ParseFloat(lonRaw, 64)
	if errLat != nil || errLon != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		r.stats.DroppedInvalid++
		return ais.PositionRecord{}, false
	}
	mmsi, err := strconv.ParseInt(field(ais.ColVesselID), 10, 64)
	if err != nil {
		r.stats.DroppedInvalid++
		return ais.PositionRecord{}, false
	}

	return ais.PositionRecord{
		VesselID:  mmsi,
		Timestamp: ts,
		Latitude:  lat,
		Longitude: lon,
		SOG:       parseNullFloat(field(ais.ColSOG)),
		COG:       parseNullFloat(field(ais.ColCOG)),
		ROT:       parseNullFloat(field(ais.ColROT)),
	}, true
}

func parseNullFloat(s string) ais.NullFloat {
	if s == "" {
		return ais.NullFloat{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return ais.NullFloat{}
	}
	return ais.Float(v)
}

// LoadFile reads and cleans the whole file at path into memory
func LoadFile(ctx context.Context, path string, cfg am.IngestConfig, log *zap.SugaredLogger) ([]ais.PositionRecord, Stats, error) {
	cfg.ChunkSize = 0
	r, err := OpenFile(path, cfg, log)
	if err != nil {
		return nil, Stats{}, err
	}
	defer r.Close()

	records, err := r.Next(ctx)
	if err == io.EOF {
		return []ais.PositionRecord{}, r.Stats(), nil
	}
	if err != nil {
		return nil, r.Stats(), err
	}
	return records, r.Stats(), nil
}
