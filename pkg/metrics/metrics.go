// Package metrics exposes comet's Prometheus instrumentation. All collectors
// are registered on the default registry at package load, so importing the
// package is enough to make the series available to a scrape handler or a
// gatherer-based summary.
//
// The counters cover the whole ingest path: bytes sliced from the source,
// rows and malformed rows out of the tokenizer, chunks completed per mode,
// task latencies by kind, and bytes written by the merge phase.
//
//	metrics.RowsParsed.Add(float64(res.Rows))
//	metrics.ChunksProcessed.WithLabelValues("analyze").Inc()
//
//	timer := metrics.NewTimer(metrics.TaskDuration.WithLabelValues("parse-load"))
//	runTask()
//	timer.Stop()
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsParsed counts rows emitted by the tokenizer across all modes.
	RowsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "rows_parsed_total",
			Help:      "Total number of rows parsed from delimited sources",
		},
	)

	// MalformedRows counts rows recovered from quoting damage. Malformed
	// rows are still parsed and counted in RowsParsed.
	MalformedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "malformed_rows_total",
			Help:      "Total number of structurally malformed rows recovered",
		},
	)

	// ChunksProcessed counts completed chunk tasks, labeled by processing
	// mode (analyze, binary, load).
	ChunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "chunks_processed_total",
			Help:      "Total number of chunks fully processed",
		},
		[]string{"mode"},
	)

	// BytesRead counts bytes loaded from sources, before any decoding.
	BytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from delimited sources",
		},
	)

	// TaskDuration tracks wall time per task, labeled by task kind.
	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comet",
			Name:      "task_duration_seconds",
			Help:      "Task execution time in seconds by kind",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
		},
		[]string{"kind"},
	)

	// MergeBytes counts bytes written into the final binary buffer.
	MergeBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "comet",
			Name:      "merge_bytes_total",
			Help:      "Total bytes written by binary merge tasks",
		},
	)
)

// Timer observes elapsed wall time on a histogram when stopped.
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts timing against the given observer.
func NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{start: time.Now(), observer: observer}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.observer.Observe(elapsed.Seconds())
	return elapsed
}
