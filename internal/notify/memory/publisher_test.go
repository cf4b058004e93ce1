package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/ecfr-ingest/internal/notify"
)

func TestPublishRecordsEvents(t *testing.T) {
	t.Parallel()
	pub := New()

	event := notify.RunCompleted{
		RunID:       "run-1",
		RunAt:       time.Unix(1700000000, 0).UTC(),
		AgencyCount: 3,
	}
	id, err := pub.Publish(context.Background(), "ingest-runs", event)
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	events := pub.Events()
	require.Len(t, events, 1)
	require.Equal(t, "ingest-runs", events[0].Topic)
	require.Equal(t, event, events[0].Event)
}

func TestEventsReturnsCopy(t *testing.T) {
	t.Parallel()
	pub := New()

	_, err := pub.Publish(context.Background(), "t", notify.RunCompleted{RunID: "a"})
	require.NoError(t, err)

	events := pub.Events()
	events[0].Event.RunID = "mutated"

	fresh := pub.Events()
	require.Equal(t, "a", fresh[0].Event.RunID)
}
