package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiffReportsDeltas(t *testing.T) {
	t.Parallel()

	prev := Snapshot{
		Slug:        "epa",
		WordCount:   1000,
		Fingerprint: "aaaa",
		Complexity:  12.5,
		RunAt:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	latest := Snapshot{
		Slug:        "epa",
		WordCount:   1100,
		Fingerprint: "bbbb",
		Complexity:  13.75,
		RunAt:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	change := Diff(prev, latest)
	require.Equal(t, "epa", change.Slug)
	require.Equal(t, 100, change.WordCountDelta)
	require.Equal(t, 10.0, change.WordCountPctChange)
	require.Equal(t, 1.25, change.ComplexityDelta)
	require.True(t, change.ContentChanged)
	require.Equal(t, latest.RunAt, change.LatestAt)
	require.Equal(t, prev.RunAt, change.PreviousAt)
}

// Fingerprint equality is the sole definition of "content unchanged".
func TestDiffContentChangeTracksFingerprint(t *testing.T) {
	t.Parallel()

	prev := Snapshot{Slug: "epa", WordCount: 500, Fingerprint: "same"}
	latest := Snapshot{Slug: "epa", WordCount: 500, Fingerprint: "same"}
	require.False(t, Diff(prev, latest).ContentChanged)

	latest.Fingerprint = "different"
	require.True(t, Diff(prev, latest).ContentChanged)
}

func TestDiffZeroPreviousWordCount(t *testing.T) {
	t.Parallel()

	change := Diff(Snapshot{WordCount: 0}, Snapshot{WordCount: 42})
	require.Equal(t, 42, change.WordCountDelta)
	require.Equal(t, 0.0, change.WordCountPctChange)
}
