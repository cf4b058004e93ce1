// Package notify publishes run-completed events for downstream consumers.
// The enrichment service that annotates agencies only reads snapshots after
// receiving this event, which guarantees it never sees an uncommitted run.
package notify

import (
	"context"
	"time"
)

// RunCompleted describes one fully committed ingestion run.
type RunCompleted struct {
	RunID        string    `json:"run_id"`
	RunAt        time.Time `json:"run_at"`
	AgencyCount  int       `json:"agency_count"`
	PartialCount int       `json:"partial_count"`
}

// Publisher pushes run-completed events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event RunCompleted) (string, error)
}

// NoopPublisher drops events.
type NoopPublisher struct{}

// Publish discards the event.
func (NoopPublisher) Publish(_ context.Context, _ string, _ RunCompleted) (string, error) {
	return "", nil
}
