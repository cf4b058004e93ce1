package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	ingestTitlesTotal = nil
	ingestFetchRetriesTotal = nil
	ingestRunsTotal = nil
	ingestRunDurationSeconds = nil
	ingestPacingDelaySeconds = nil
	ingestActiveWorkers = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if ingestTitlesTotal == nil || ingestFetchRetriesTotal == nil ||
		ingestRunsTotal == nil || ingestRunDurationSeconds == nil ||
		ingestPacingDelaySeconds == nil || ingestActiveWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestRunStatusLabels(t *testing.T) {
	Init()

	for _, status := range []string{"persisted", "failed", "canceled"} {
		IncRunStatus(status)
		if val := testutil.ToFloat64(ingestRunsTotal.WithLabelValues(status)); val < 1 {
			t.Errorf("expected ingest_runs_total{status=%q} >= 1, got %f", status, val)
		}
	}
}

func TestWorkerGaugeBalances(t *testing.T) {
	Init()

	before := testutil.ToFloat64(ingestActiveWorkers)
	WorkerStarted()
	WorkerStarted()
	if val := testutil.ToFloat64(ingestActiveWorkers); val != before+2 {
		t.Errorf("expected gauge %f after two starts, got %f", before+2, val)
	}
	WorkerFinished()
	WorkerFinished()
	if val := testutil.ToFloat64(ingestActiveWorkers); val != before {
		t.Errorf("expected gauge to return to %f, got %f", before, val)
	}
}

func TestObservationsDoNotPanic(t *testing.T) {
	Init()

	IncTitleResult("ok")
	IncFetchRetries()
	ObserveRunDuration(3 * time.Second)
	ObservePacingDelay(50 * time.Millisecond)
}
