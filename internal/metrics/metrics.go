// Package metrics records batch counters and writes them in the Prometheus
// text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns a private registry so repeated batches and tests never
// collide on global collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	files         *prometheus.CounterVec
	chunks        *prometheus.CounterVec
	modelLoads    *prometheus.CounterVec
	modelReleases prometheus.Counter
	unitDuration  *prometheus.HistogramVec
	loadDuration  prometheus.Histogram
	lastRun       prometheus.Gauge
}

// New creates a Recorder with every collector registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcript_flow_files_total",
				Help: "Source files processed by outcome (done/skipped/failed)",
			},
			[]string{"outcome"},
		),
		chunks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcript_flow_chunks_total",
				Help: "Chunk operations by stage (extract/transcribe/reuse) and status",
			},
			[]string{"stage", "status"},
		),
		modelLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcript_flow_model_loads_total",
				Help: "Model load attempts by status",
			},
			[]string{"status"},
		),
		modelReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transcript_flow_model_releases_total",
			Help: "Model handles closed after a task",
		}),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transcript_flow_transcription_duration_seconds",
				Help:    "Wall time of one transcription call",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
			},
			[]string{"status"},
		),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcript_flow_model_load_duration_seconds",
			Help:    "Wall time of one model load",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "transcript_flow_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
	}

	r.registry.MustRegister(
		r.files,
		r.chunks,
		r.modelLoads,
		r.modelReleases,
		r.unitDuration,
		r.loadDuration,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// FileOutcome counts one source file result
func (r *Recorder) FileOutcome(outcome string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(outcome).Inc()
}

// Chunk counts one chunk-level operation
func (r *Recorder) Chunk(stage string, success bool) {
	if r == nil {
		return
	}
	r.chunks.WithLabelValues(stage, status(success)).Inc()
}

// ModelLoad records a load attempt
func (r *Recorder) ModelLoad(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.modelLoads.WithLabelValues(status(err == nil)).Inc()
	if err == nil {
		r.loadDuration.Observe(elapsed.Seconds())
	}
}

// ModelRelease records a release; only closes are counted
func (r *Recorder) ModelRelease(closed bool) {
	if r == nil {
		return
	}
	if closed {
		r.modelReleases.Inc()
	}
}

// Transcription records one model call
func (r *Recorder) Transcription(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.unitDuration.WithLabelValues(status(err == nil)).Observe(elapsed.Seconds())
}

// WriteTextfile stamps the run time and atomically writes the registry to path
func (r *Recorder) WriteTextfile(path string, now time.Time) error {
	r.lastRun.Set(float64(now.Unix()))
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
