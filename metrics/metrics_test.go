package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/aisguard/ais"
	"github.com/teranos/aisguard/pipeline"
	"github.com/teranos/aisguard/pulse/pool"
	"github.com/teranos/aisguard/pulse/resources"
)

func sampleReport() *pipeline.Report {
	speed := ais.NewTable(ais.KindSpeed)
	speed.Append(ais.AnomalyRecord{}, ais.AnomalyRecord{})
	return &pipeline.Report{
		Records: 40,
		Jumps:   ais.NewTable(ais.KindLocationJump),
		Invalid: ais.NewTable(ais.KindInvalidFix),
		Speed:   speed,
		Course:  ais.NewTable(ais.KindCourse),
		Stages: []pipeline.StageOutcome{
			{Name: pipeline.StageA, Status: pipeline.StatusDegraded, Duration: 2 * time.Second},
			{Name: pipeline.StageB, Status: pipeline.StatusOK, Duration: time.Second, Stats: pool.Stats{Failed: 1}},
			{Name: pipeline.StageC, Status: pipeline.StatusOK, Duration: time.Second},
		},
	}
}

func TestWriteChunk(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.WriteChunk(context.Background(), sampleReport()))
	require.NoError(t, r.WriteChunk(context.Background(), sampleReport()))

	assert.Equal(t, 80.0, testutil.ToFloat64(r.records))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.chunks))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.anomalies.WithLabelValues("speed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.anomalies.WithLabelValues("course")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageOutcomes.WithLabelValues(pipeline.StageA, "degraded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.itemFailures.WithLabelValues(pipeline.StageB)))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.WriteChunk(context.Background(), sampleReport()))
	r.ObserveUsage(resources.Usage{PeakRSS: 1 << 20, MeanCPU: 12.5})

	path := filepath.Join(t.TempDir(), "aisguard.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `aisguard_anomalies_total{kind="speed"} 2`)
	assert.Contains(t, text, "aisguard_process_peak_rss_bytes 1.048576e+06")
	assert.Contains(t, text, `aisguard_stage_duration_seconds_count{stage="stage_a"} 1`)
}

func TestWriteTextfileBadPath(t *testing.T) {
	err := NewRecorder().WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}
