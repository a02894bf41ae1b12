// Package report persists and presents run results: one CSV table per anomaly
// kind plus the inconsistency table, and a terminal summary.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/am"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/logger"
	"github.com/teranos/aisguard/pipeline"
)

// Output file names
const (
	FileJumps        = "jump_anomalies.csv"
	FileInvalid      = "invalid_jumps.csv"
	FileSpeed        = "speed_anomalies.csv"
	FileCourse       = "course_anomalies.csv"
	FileInconsistent = "inconsistent_vessels.csv"
)

// FileFor returns the output file name of an anomaly kind
func FileFor(kind ais.AnomalyKind) string {
	switch kind {
	case ais.KindLocationJump:
		return FileJumps
	case ais.KindInvalidFix:
		return FileInvalid
	case ais.KindSpeed:
		return FileSpeed
	case ais.KindCourse:
		return FileCourse
	}
	return string(kind) + ".csv"
}

// KindForFile is the inverse of FileFor for the four detector tables
func KindForFile(name string) (ais.AnomalyKind, bool) {
	for _, k := range ais.Kinds() {
		if FileFor(k) == filepath.Base(name) {
			return k, true
		}
	}
	return "", false
}

// InconsistencyColumns are the columns of the inconsistency table
var InconsistencyColumns = append(append([]string{}, ais.BaseColumns...), ais.ColCellX, ais.ColCellY)

// Writer writes result tables into a directory. The first write of a table in
// a run truncates the file and writes the header; later chunks append rows.
type Writer struct {
	dir     string
	log     *zap.SugaredLogger
	mu      sync.Mutex
	started map[string]bool
	rows    map[string]int
}

// NewWriter creates dir if needed and returns a Writer for it
func NewWriter(dir string, log *zap.SugaredLogger) (*Writer, error) {
	if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	if log == nil {
		log = logger.ComponentLogger("report")
	}
	return &Writer{dir: dir, log: log, started: map[string]bool{}, rows: map[string]int{}}, nil
}

// Rows returns how many data rows were written per file
func (w *Writer) Rows() map[string]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int, len(w.rows))
	for k, v := range w.rows {
		out[k] = v
	}
	return out
}

// Files returns the paths written so far
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, name := range []string{FileJumps, FileInvalid, FileSpeed, FileCourse, FileInconsistent} {
		if w.started[name] {
			out = append(out, filepath.Join(w.dir, name))
		}
	}
	return out
}

// WriteChunk writes every table of a chunk report. It satisfies pipeline.Sink.
func (w *Writer) WriteChunk(ctx context.Context, r *pipeline.Report) error {
	for _, t := range r.Tables() {
		rows := make([][]string, 0, t.Len())
		for _, rec := range t.Records {
			rows = append(rows, anomalyRow(t.Columns, rec))
		}
		if err := w.write(FileFor(t.Kind), t.Columns, rows); err != nil {
			return err
		}
	}

	rows := make([][]string, 0, len(r.Consistency.Records))
	for _, rec := range r.Consistency.Records {
		key, _ := r.Consistency.CellOf(rec)
		row := baseRow(rec)
		row = append(row, strconv.Itoa(key.X), strconv.Itoa(key.Y))
		rows = append(rows, row)
	}
	if err := w.write(FileInconsistent, InconsistencyColumns, rows); err != nil {
		return err
	}

	logger.FromContext(ctx, w.log).Debugw("chunk written", logger.FieldPath, w.dir)
	return nil
}

func (w *Writer) write(name string, header []string, rows [][]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, name)
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	first := !w.started[name]
	if first {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	} else {
		header = nil
	}

	f, err := os.OpenFile(path, flags, am.DefaultFilePermissions)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}
	if err := writeCSV(f, path, header, rows); err != nil {
		return err
	}

	w.started[name] = true
	w.rows[name] += len(rows)
	return nil
}

// writeCSV writes an optional header and rows to wc and closes it. A failed
// close is reported, since it may be the only sign the data never reached disk.
func writeCSV(wc io.WriteCloser, path string, header []string, rows [][]string) (err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	cw := csv.NewWriter(wc)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return errors.Wrapf(err, "failed to write header of %s", path)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func baseRow(r ais.PositionRecord) []string {
	return []string{
		r.Timestamp.Format(am.DefaultTimestampLayout),
		strconv.FormatInt(r.VesselID, 10),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		r.ROT.String(),
		r.SOG.String(),
		r.COG.String(),
	}
}

func anomalyRow(columns []string, r ais.AnomalyRecord) []string {
	row := baseRow(r.PositionRecord)
	if len(columns) <= len(ais.BaseColumns) {
		return row
	}
	for _, col := range columns[len(ais.BaseColumns):] {
		var v ais.NullFloat
		switch col {
		case ais.ColLatDiff:
			v = r.Deltas.LatDiff
		case ais.ColLonDiff:
			v = r.Deltas.LonDiff
		case ais.ColJumpKm:
			v = r.Deltas.JumpKm
		case ais.ColSOGDiff:
			v = r.Deltas.SOGDiff
		case ais.ColCOGDiff:
			v = r.Deltas.COGDiff
		}
		row = append(row, v.String())
	}
	return row
}
