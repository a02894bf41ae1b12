package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/ixgest"
	"github.com/teranos/aisguard/pipeline"
	"github.com/teranos/aisguard/pulse/resources"
)

// RunSummary bundles what the summary printer shows
type RunSummary struct {
	Pipeline *pipeline.Summary
	Ingest   ixgest.Stats
	Usage    resources.Usage
	Files    []string
}

// PrintSummary renders the run summary as pterm tables
func PrintSummary(w io.Writer, rs RunSummary) error {
	s := rs.Pipeline
	if s == nil {
		return errors.New("no summary to print")
	}

	header := pterm.DefaultSection.Sprintf("Run %s", s.RunID)
	fmt.Fprint(w, header)

	overview := pterm.TableData{
		{"Records", humanize.Comma(int64(s.Records))},
		{"Dropped rows", humanize.Comma(int64(rs.Ingest.Dropped()))},
		{"Chunks", strconv.Itoa(s.Chunks)},
		{"Tracks", humanize.Comma(int64(s.Tracks))},
		{"Final state", string(s.State)},
		{"Elapsed", s.Duration.Round(time.Millisecond).String()},
	}
	if err := renderTable(w, overview, false); err != nil {
		return err
	}

	anomalies := pterm.TableData{{"Table", "Records"}}
	for _, kind := range ais.Kinds() {
		anomalies = append(anomalies, []string{FileFor(kind), humanize.Comma(int64(s.Counts[kind]))})
	}
	anomalies = append(anomalies, []string{
		FileInconsistent,
		fmt.Sprintf("%s (%s cells)", humanize.Comma(int64(s.Inconsistent)), humanize.Comma(int64(s.FlaggedCells))),
	})
	if err := renderTable(w, anomalies, true); err != nil {
		return err
	}

	stages := pterm.TableData{{"Stage", "Time", "Degraded", "Failed", "Item failures"}}
	for _, st := range s.Stages {
		stages = append(stages, []string{
			st.Name,
			st.Duration.Round(time.Millisecond).String(),
			strconv.Itoa(st.Degraded),
			strconv.Itoa(st.Failed),
			strconv.Itoa(st.ItemFailures),
		})
	}
	if err := renderTable(w, stages, true); err != nil {
		return err
	}

	if rs.Usage.Cores > 0 {
		fmt.Fprintf(w, "Peak RSS %s, mean RSS %s of %s, mean CPU %.1f%% over %d cores\n",
			humanize.IBytes(rs.Usage.PeakRSS),
			humanize.IBytes(rs.Usage.MeanRSS),
			humanize.IBytes(rs.Usage.SystemTotal),
			rs.Usage.MeanCPU,
			rs.Usage.Cores,
		)
	}
	for _, f := range rs.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if s.Degraded() {
		fmt.Fprintln(w, pterm.Warning.Sprint("One or more stages timed out or failed; their tables are empty for the affected chunks"))
	}
	return nil
}

func renderTable(w io.Writer, data pterm.TableData, hasHeader bool) error {
	out, err := pterm.DefaultTable.WithHasHeader(hasHeader).WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
