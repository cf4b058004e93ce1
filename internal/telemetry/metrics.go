// Package telemetry exposes Prometheus collectors for the ingest service.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestTitlesTotal        *prometheus.CounterVec
	ingestFetchRetriesTotal  prometheus.Counter
	ingestRunsTotal          *prometheus.CounterVec
	ingestRunDurationSeconds prometheus.Histogram
	ingestPacingDelaySeconds prometheus.Histogram
	ingestActiveWorkers      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		ingestTitlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_titles_total",
				Help: "Total number of CFR title fetch outcomes, labeled by result.",
			},
			[]string{"result"},
		)

		ingestFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_fetch_retries_total",
				Help: "Total number of fetch retry attempts against the eCFR API.",
			},
		)

		ingestRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_runs_total",
				Help: "Total number of ingestion runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		ingestRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_run_duration_seconds",
				Help:    "Histogram of end-to-end ingestion run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		)

		ingestPacingDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_pacing_delay_seconds",
				Help:    "Histogram of delays imposed by the shared request pacer.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		ingestActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_active_workers",
				Help: "Number of title fetch workers currently running.",
			},
		)
	})
}

// IncTitleResult records one title fetch outcome ("ok", "fetch_error",
// "parse_error").
func IncTitleResult(result string) {
	Init()
	ingestTitlesTotal.WithLabelValues(result).Inc()
}

// IncFetchRetries records one retry attempt.
func IncFetchRetries() {
	Init()
	ingestFetchRetriesTotal.Inc()
}

// IncRunStatus records a terminal run status ("persisted", "failed",
// "canceled").
func IncRunStatus(status string) {
	Init()
	ingestRunsTotal.WithLabelValues(status).Inc()
}

// ObserveRunDuration records the wall time of a completed run.
func ObserveRunDuration(d time.Duration) {
	Init()
	ingestRunDurationSeconds.Observe(d.Seconds())
}

// ObservePacingDelay records a delay imposed by the shared pacer.
func ObservePacingDelay(d time.Duration) {
	Init()
	ingestPacingDelaySeconds.Observe(d.Seconds())
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	Init()
	ingestActiveWorkers.Inc()
}

// WorkerFinished decrements the active worker gauge.
func WorkerFinished() {
	Init()
	ingestActiveWorkers.Dec()
}
