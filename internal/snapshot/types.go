// Package snapshot defines the persisted snapshot model and the Store
// contract for append-only snapshot history.
package snapshot

import (
	"math"
	"time"

	"github.com/regwatch/ecfr-ingest/internal/ecfr"
)

// Snapshot is one immutable, timestamped record of an agency's computed
// metrics from a single ingestion run. Identity is (Slug, RunAt); rows are
// append-only and never updated in place.
type Snapshot struct {
	Slug           string              `json:"slug"`
	Name           string              `json:"name"`
	ParentSlug     string              `json:"parent_slug,omitempty"`
	WordCount      int                 `json:"word_count"`
	Fingerprint    string              `json:"fingerprint"`
	Complexity     float64             `json:"complexity_score"`
	LexiconVersion string              `json:"lexicon_version"`
	CFRReferences  []ecfr.CFRReference `json:"cfr_references"`
	Partial        bool                `json:"partial"`
	RunAt          time.Time           `json:"run_at"`
}

// Change is the derived difference between the two most recent snapshots of
// one agency. It is a pure function over two rows, never stored.
type Change struct {
	Slug               string    `json:"slug"`
	WordCountDelta     int       `json:"word_count_delta"`
	WordCountPctChange float64   `json:"word_count_pct_change"`
	ComplexityDelta    float64   `json:"complexity_delta"`
	ContentChanged     bool      `json:"content_changed"`
	LatestAt           time.Time `json:"latest_at"`
	PreviousAt         time.Time `json:"previous_at"`
}

// Diff computes the Change between a previous and latest snapshot of the
// same agency. Content change is defined purely by fingerprint inequality.
func Diff(prev, latest Snapshot) Change {
	pct := 0.0
	if prev.WordCount > 0 {
		pct = float64(latest.WordCount-prev.WordCount) / float64(prev.WordCount) * 100
		pct = math.Round(pct*100) / 100
	}
	return Change{
		Slug:               latest.Slug,
		WordCountDelta:     latest.WordCount - prev.WordCount,
		WordCountPctChange: pct,
		ComplexityDelta:    math.Round((latest.Complexity-prev.Complexity)*100) / 100,
		ContentChanged:     latest.Fingerprint != prev.Fingerprint,
		LatestAt:           latest.RunAt,
		PreviousAt:         prev.RunAt,
	}
}
