package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch/ecfr-ingest/internal/snapshot"
)

func runStamp(day int) time.Time {
	return time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC)
}

func TestAppendAndQueryHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), []snapshot.Snapshot{
		{Slug: "epa", WordCount: 100, Fingerprint: "f1"},
		{Slug: "usda", WordCount: 200, Fingerprint: "f2"},
	}))
	require.NoError(t, store.AppendRunBatch(ctx, runStamp(2), []snapshot.Snapshot{
		{Slug: "epa", WordCount: 150, Fingerprint: "f3"},
	}))

	latest, err := store.LatestSnapshot(ctx, "epa")
	require.NoError(t, err)
	require.Equal(t, 150, latest.WordCount)
	require.Equal(t, runStamp(2), latest.RunAt)

	history, err := store.History(ctx, "epa")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, history[0].RunAt.Before(history[1].RunAt))

	prev, newest, err := store.TwoMostRecent(ctx, "epa")
	require.NoError(t, err)
	require.Equal(t, "f1", prev.Fingerprint)
	require.Equal(t, "f3", newest.Fingerprint)
}

func TestLatestSnapshotUnknownAgency(t *testing.T) {
	t.Parallel()

	_, err := NewStore().LatestSnapshot(context.Background(), "nobody")
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)
}

func TestTwoMostRecentRequiresHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	_, _, err := store.TwoMostRecent(ctx, "epa")
	require.ErrorIs(t, err, snapshot.ErrInsufficientHistory)

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), []snapshot.Snapshot{{Slug: "epa"}}))
	_, _, err = store.TwoMostRecent(ctx, "epa")
	require.ErrorIs(t, err, snapshot.ErrInsufficientHistory)
}

func TestLatestRunReturnsWholeBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	_, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), []snapshot.Snapshot{
		{Slug: "usda"}, {Slug: "epa"},
	}))
	require.NoError(t, store.AppendRunBatch(ctx, runStamp(2), []snapshot.Snapshot{
		{Slug: "epa"},
	}))

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, "epa", latest[0].Slug)
	require.Equal(t, runStamp(2), latest[0].RunAt)
}

func TestEmptyBatchLeavesLatestRunUnchanged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), nil))
	_, err := store.LatestRun(ctx)
	require.ErrorIs(t, err, snapshot.ErrNoSnapshot)

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), []snapshot.Snapshot{
		{Slug: "epa"},
	}))
	require.NoError(t, store.AppendRunBatch(ctx, runStamp(2), nil))

	latest, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, runStamp(1), latest[0].RunAt)
}

func TestFailedAppendLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.AppendRunBatch(ctx, runStamp(1), []snapshot.Snapshot{
		{Slug: "epa", Fingerprint: "before"},
	}))

	store.FailNextAppend(errors.New("disk full"))
	err := store.AppendRunBatch(ctx, runStamp(2), []snapshot.Snapshot{
		{Slug: "epa", Fingerprint: "after"},
	})
	var persistErr *snapshot.PersistenceError
	require.ErrorAs(t, err, &persistErr)

	latest, err := store.LatestSnapshot(ctx, "epa")
	require.NoError(t, err)
	require.Equal(t, "before", latest.Fingerprint)
	require.Equal(t, runStamp(1), latest.RunAt)
}
