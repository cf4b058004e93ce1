package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoSnapshot is returned when an agency has no stored history at all.
var ErrNoSnapshot = errors.New("no snapshot for agency")

// ErrInsufficientHistory is returned when a diff needs two snapshots but
// fewer exist.
var ErrInsufficientHistory = errors.New("fewer than two snapshots for agency")

// PersistenceError reports a failed batch write. The failed run's rows are
// rolled back in full; a half-written run must never become visible.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist snapshot batch: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store persists snapshot rows append-only.
type Store interface {
	// AppendRunBatch writes all rows of one ingestion run atomically,
	// stamped with the single run timestamp. Either every row commits or
	// none do.
	AppendRunBatch(ctx context.Context, runAt time.Time, snapshots []Snapshot) error

	// LatestSnapshot returns the most recent snapshot for the agency, or
	// ErrNoSnapshot.
	LatestSnapshot(ctx context.Context, slug string) (Snapshot, error)

	// History returns all snapshots for the agency ordered by run timestamp
	// ascending.
	History(ctx context.Context, slug string) ([]Snapshot, error)

	// TwoMostRecent returns the previous and latest snapshots for the
	// agency, or ErrInsufficientHistory.
	TwoMostRecent(ctx context.Context, slug string) (prev, latest Snapshot, err error)

	// LatestRun returns every snapshot of the most recent run, or
	// ErrNoSnapshot when the store is empty.
	LatestRun(ctx context.Context) ([]Snapshot, error)
}
