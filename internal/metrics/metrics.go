// Package metrics provides Prometheus metrics for batch runs.
//
// The commands are one-shot, so nothing is scraped: the registry is flushed to a
// node_exporter textfile when a path is configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	registry *prometheus.Registry

	rowsRead      *prometheus.CounterVec
	rowsDropped   *prometheus.CounterVec
	filesWritten  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	lastRun       prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeimpact_rows_read_total",
				Help: "Rows read by pipeline stage",
			},
			[]string{"stage"},
		),
		rowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeimpact_rows_dropped_total",
				Help: "Rows dropped by pipeline stage",
			},
			[]string{"stage", "reason"},
		),
		filesWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradeimpact_files_written_total",
				Help: "Output files written",
			},
			[]string{"kind"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradeimpact_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradeimpact_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
	}
	r.registry.MustRegister(r.rowsRead, r.rowsDropped, r.filesWritten, r.stageDuration, r.lastRun)
	return r
}

func (r *Recorder) RowsRead(stage string, n int) {
	if r == nil {
		return
	}
	r.rowsRead.WithLabelValues(stage).Add(float64(n))
}

func (r *Recorder) RowsDropped(stage, reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsDropped.WithLabelValues(stage, reason).Add(float64(n))
}

func (r *Recorder) FileWritten(kind string) {
	if r == nil {
		return
	}
	r.filesWritten.WithLabelValues(kind).Inc()
}

// Time returns a func that observes the elapsed time for stage when called.
func (r *Recorder) Time(stage string) func() {
	start := time.Now()
	return func() {
		if r == nil {
			return
		}
		r.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Flush stamps the run time and writes the registry to path. Empty path is a no-op.
func (r *Recorder) Flush(path string) error {
	if r == nil || path == "" {
		return nil
	}
	r.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, r.registry)
}
