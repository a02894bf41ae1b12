package pipeline

import (
	"time"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/consistency"
	"github.com/teranos/aisguard/pulse/pool"
)

// Stage names used in reports, logs and the run ledger
const (
	StageA = "stage_a"
	StageB = "stage_b"
	StageC = "stage_c"
)

// StageStatus is the terminal condition of one stage
type StageStatus string

const (
	StatusOK       StageStatus = "ok"
	StatusDegraded StageStatus = "degraded" // timed out, result replaced by an empty set
	StatusFailed   StageStatus = "failed"
)

// StageOutcome describes how one stage finished
type StageOutcome struct {
	Name     string
	Status   StageStatus
	Duration time.Duration
	Stats    pool.Stats
	Err      error
}

// Report is the result of one orchestrator run
type Report struct {
	RunID       string
	Chunk       int
	Records     int
	Tracks      int
	Cells       int
	Jumps       ais.AnomalyTable
	Invalid     ais.AnomalyTable
	Speed       ais.AnomalyTable
	Course      ais.AnomalyTable
	Consistency consistency.Report
	Stages      []StageOutcome
	Transitions []Transition
	State       State
	Started     time.Time
	Duration    time.Duration
}

// Tables returns the four detector tables in report order
func (r *Report) Tables() []ais.AnomalyTable {
	return []ais.AnomalyTable{r.Jumps, r.Invalid, r.Speed, r.Course}
}

// Counts returns the record count per anomaly kind
func (r *Report) Counts() map[ais.AnomalyKind]int {
	counts := make(map[ais.AnomalyKind]int, 4)
	for _, t := range r.Tables() {
		counts[t.Kind] = t.Len()
	}
	return counts
}

// Inconsistent returns the number of records in flagged cells
func (r *Report) Inconsistent() int {
	return len(r.Consistency.Records)
}

// Degraded reports whether any stage was force-terminated or failed and
// contributed an empty result
func (r *Report) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status != StatusOK {
			return true
		}
	}
	return false
}

// Stage returns the outcome of the named stage
func (r *Report) Stage(name string) (StageOutcome, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageOutcome{}, false
}

// States returns the visited states in order
func (r *Report) States() []State {
	out := []State{StateIdle}
	for _, t := range r.Transitions {
		out = append(out, t.To)
	}
	return out
}
