// Package memory provides an in-memory snapshot store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regwatch/ecfr-ingest/internal/snapshot"
)

// Store keeps snapshot history per agency slug in memory.
type Store struct {
	mu         sync.RWMutex
	bySlug     map[string][]snapshot.Snapshot
	runStamps  []time.Time
	failAppend error
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{bySlug: make(map[string][]snapshot.Snapshot)}
}

// FailNextAppend makes the next AppendRunBatch fail with err. Test hook.
func (s *Store) FailNextAppend(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}

// AppendRunBatch stores all rows of one run, stamped with runAt. The batch
// is applied all-or-nothing; an empty batch leaves the store untouched.
func (s *Store) AppendRunBatch(_ context.Context, runAt time.Time, snapshots []snapshot.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		err := s.failAppend
		s.failAppend = nil
		return &snapshot.PersistenceError{Err: err}
	}
	for _, snap := range snapshots {
		snap.RunAt = runAt
		s.bySlug[snap.Slug] = append(s.bySlug[snap.Slug], snap)
	}
	s.runStamps = append(s.runStamps, runAt)
	return nil
}

// LatestSnapshot returns the most recent snapshot for the agency.
func (s *Store) LatestSnapshot(_ context.Context, slug string) (snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sortedHistory(slug)
	if len(history) == 0 {
		return snapshot.Snapshot{}, snapshot.ErrNoSnapshot
	}
	return history[len(history)-1], nil
}

// History returns the agency's snapshots ordered by run timestamp ascending.
func (s *Store) History(_ context.Context, slug string) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedHistory(slug), nil
}

// TwoMostRecent returns the previous and latest snapshots for the agency.
func (s *Store) TwoMostRecent(_ context.Context, slug string) (snapshot.Snapshot, snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sortedHistory(slug)
	if len(history) < 2 {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, snapshot.ErrInsufficientHistory
	}
	return history[len(history)-2], history[len(history)-1], nil
}

// LatestRun returns every snapshot stamped with the most recent run
// timestamp.
func (s *Store) LatestRun(_ context.Context) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runStamps) == 0 {
		return nil, snapshot.ErrNoSnapshot
	}
	latest := s.runStamps[0]
	for _, ts := range s.runStamps[1:] {
		if ts.After(latest) {
			latest = ts
		}
	}
	var out []snapshot.Snapshot
	for _, history := range s.bySlug {
		for _, snap := range history {
			if snap.RunAt.Equal(latest) {
				out = append(out, snap)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (s *Store) sortedHistory(slug string) []snapshot.Snapshot {
	history := append([]snapshot.Snapshot(nil), s.bySlug[slug]...)
	sort.Slice(history, func(i, j int) bool { return history[i].RunAt.Before(history[j].RunAt) })
	return history
}
