// Package metrics provides Prometheus collectors for the FarePipe
// pipeline stages. The collectors are passive: they record stage
// durations, failures, and data volumes, and expose nothing on their
// own. Registration uses promauto against the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks wall-clock duration of successful stage runs.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "farepipe",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stage executions",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})

	// StageFailures counts stage executions that ended in an error.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farepipe",
		Name:      "stage_failures_total",
		Help:      "Total number of failed pipeline stage executions",
	}, []string{"stage"})

	// RecordsLoaded counts rows replaced into the destination table.
	RecordsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farepipe",
		Name:      "records_loaded_total",
		Help:      "Total number of rows loaded into the relational store",
	}, []string{"table"})

	// BytesDownloaded counts archive bytes fetched from the remote source.
	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farepipe",
		Name:      "bytes_downloaded_total",
		Help:      "Total archive bytes downloaded",
	})

	// SnapshotRows counts rows written to the flat-file snapshot.
	SnapshotRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farepipe",
		Name:      "snapshot_rows_total",
		Help:      "Total rows materialized into flat-file snapshots",
	})
)

// Timer measures one stage execution and reports it to StageDuration.
type Timer struct {
	stage string
	start time.Time
}

// NewStageTimer starts a timer for the named stage.
func NewStageTimer(stage string) *Timer {
	return &Timer{stage: stage, start: time.Now()}
}

// ObserveDuration records the elapsed time and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	d := time.Since(t.start)
	StageDuration.WithLabelValues(t.stage).Observe(d.Seconds())
	return d
}
