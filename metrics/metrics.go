// Package metrics records run metrics in a private Prometheus registry and
// writes them in the text exposition format for the node exporter's
// textfile collector.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teranos/aisguard/errors"
	"github.com/teranos/aisguard/pipeline"
	"github.com/teranos/aisguard/pulse/resources"
)

const namespace = "aisguard"

// Recorder collects metrics for one invocation
type Recorder struct {
	registry *prometheus.Registry

	records       prometheus.Counter
	chunks        prometheus.Counter
	anomalies     *prometheus.CounterVec
	inconsistent  prometheus.Counter
	flaggedCells  prometheus.Counter
	stageDuration *prometheus.HistogramVec
	stageOutcomes *prometheus.CounterVec
	itemFailures  *prometheus.CounterVec
	peakRSS       prometheus.Gauge
	meanCPU       prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Cleaned position records processed",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Input chunks processed",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Anomaly records by kind",
		}, []string{"kind"}),
		inconsistent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistent_records_total",
			Help:      "Records in grid cells flagged by the consistency check",
		}),
		flaggedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flagged_cells_total",
			Help:      "Grid cells flagged by the consistency check",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each stage per chunk",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Stage completions by status (ok, degraded, failed)",
		}, []string{"stage", "status"}),
		itemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_item_failures_total",
			Help:      "Work items that failed inside a worker pool",
		}, []string{"stage"}),
		peakRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_peak_rss_bytes",
			Help:      "Peak resident set size sampled during the run",
		}),
		meanCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_mean_cpu_percent",
			Help:      "Mean per-core CPU load sampled during the run",
		}),
	}

	r.registry.MustRegister(
		r.records, r.chunks, r.anomalies, r.inconsistent, r.flaggedCells,
		r.stageDuration, r.stageOutcomes, r.itemFailures, r.peakRSS, r.meanCPU,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteChunk records one chunk report. It satisfies pipeline.Sink.
func (r *Recorder) WriteChunk(_ context.Context, rep *pipeline.Report) error {
	r.records.Add(float64(rep.Records))
	r.chunks.Inc()
	for kind, n := range rep.Counts() {
		r.anomalies.WithLabelValues(string(kind)).Add(float64(n))
	}
	r.inconsistent.Add(float64(rep.Inconsistent()))
	r.flaggedCells.Add(float64(len(rep.Consistency.Cells)))

	for _, s := range rep.Stages {
		r.stageDuration.WithLabelValues(s.Name).Observe(s.Duration.Seconds())
		r.stageOutcomes.WithLabelValues(s.Name, string(s.Status)).Inc()
		if s.Stats.Failed > 0 {
			r.itemFailures.WithLabelValues(s.Name).Add(float64(s.Stats.Failed))
		}
	}
	return nil
}

// ObserveUsage records the resource sampler summary
func (r *Recorder) ObserveUsage(u resources.Usage) {
	r.peakRSS.Set(float64(u.PeakRSS))
	r.meanCPU.Set(u.MeanCPU)
}

// WriteTextfile writes every metric to path atomically
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
