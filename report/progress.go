package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"github.com/teranos/aisguard/pipeline"
	"github.com/teranos/aisguard/pulse"
)

// ProgressEvent is one structured JSON progress event
type ProgressEvent struct {
	Type      string                 `json:"type"` // "stage", "progress", "complete", "error", "info"
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// CLIEmitter prints progress to the terminal using pterm
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a terminal progress emitter
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

// EmitStage prints a stage announcement
func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(stage), message)
}

// EmitProgress prints a processed count
func (e *CLIEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	unit := "records"
	if t, ok := metadata["type"].(string); ok {
		unit = t
	}
	pterm.Printf("✅ Processed %s %s", pterm.Green(humanize.Comma(int64(count))), unit)
	if n, ok := metadata["anomalies"].(int); ok && n > 0 {
		pterm.Printf(", %s anomalies", pterm.Yellow(humanize.Comma(int64(n))))
	}
	pterm.Println()
}

// EmitComplete prints the completion banner
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Success.Println("Detection complete")
	if e.verbosity >= 1 {
		for key, value := range summary {
			pterm.Printf("  %s: %v\n", key, value)
		}
	}
}

// EmitError prints an error
func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints an informational message at -v and above
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.Println(message)
	}
}

// JSONEmitter writes one JSON event per line
type JSONEmitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONEmitter creates a JSON emitter writing to w, or stdout when w is nil
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONEmitter{encoder: json.NewEncoder(w)}
}

func (e *JSONEmitter) emit(kind string, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.encoder.Encode(ProgressEvent{Type: kind, Timestamp: time.Now(), Data: data})
}

// EmitStage emits a stage event
func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.emit("stage", map[string]interface{}{"stage": stage, "message": message})
}

// EmitProgress emits a progress event with metadata merged into its data
func (e *JSONEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	data := map[string]interface{}{"count": count}
	for k, v := range metadata {
		data[k] = v
	}
	e.emit("progress", data)
}

// EmitComplete emits the completion event
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.emit("complete", summary)
}

// EmitError emits an error event
func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]interface{}{"stage": stage, "error": err.Error()})
}

// EmitInfo emits an info event
func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]interface{}{"message": message})
}

// ProgressSink forwards chunk reports to a progress emitter
type ProgressSink struct {
	emitter pulse.ProgressEmitter
}

// NewProgressSink wraps emitter as a pipeline.Sink
func NewProgressSink(emitter pulse.ProgressEmitter) *ProgressSink {
	return &ProgressSink{emitter: emitter}
}

// WriteChunk reports one chunk. Stages that did not finish ok are emitted as
// errors so a degraded chunk is visible while the run continues.
func (s *ProgressSink) WriteChunk(_ context.Context, r *pipeline.Report) error {
	total := 0
	for _, n := range r.Counts() {
		total += n
	}
	for _, st := range r.Stages {
		if st.Status != pipeline.StatusOK && st.Err != nil {
			s.emitter.EmitError(st.Name, st.Err)
		}
	}
	s.emitter.EmitProgress(r.Records, map[string]interface{}{
		"type":         "records",
		"chunk":        r.Chunk,
		"anomalies":    total,
		"inconsistent": r.Inconsistent(),
		"state":        string(r.State),
	})
	return nil
}

// CompleteSummary announces the end of a run
func CompleteSummary(emitter pulse.ProgressEmitter, s *pipeline.Summary) {
	emitter.EmitComplete(map[string]interface{}{
		"run_id":       s.RunID,
		"chunks":       s.Chunks,
		"records":      s.Records,
		"anomalies":    s.Total(),
		"inconsistent": s.Inconsistent,
		"degraded":     s.Degraded(),
		"duration":     fmt.Sprint(s.Duration.Round(time.Millisecond)),
	})
}
