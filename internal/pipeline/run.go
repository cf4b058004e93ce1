// Package pipeline orchestrates one ingestion run: resolve the agency
// directory, fetch and parse each referenced CFR title under bounded
// concurrency, score per-agency text, and persist the batch atomically.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regwatch/ecfr-ingest/internal/agency"
	"github.com/regwatch/ecfr-ingest/internal/archive"
	"github.com/regwatch/ecfr-ingest/internal/document"
	"github.com/regwatch/ecfr-ingest/internal/ecfr"
	"github.com/regwatch/ecfr-ingest/internal/notify"
	"github.com/regwatch/ecfr-ingest/internal/scoring"
	"github.com/regwatch/ecfr-ingest/internal/snapshot"
	"github.com/regwatch/ecfr-ingest/internal/telemetry"
)

// State is the lifecycle phase of a run.
type State string

// Run states. A run moves strictly forward; Persisted and Failed are
// terminal.
const (
	StateIdle        State = "idle"
	StateResolving   State = "resolving"
	StateFetching    State = "fetching"
	StateAggregating State = "aggregating"
	StatePersisted   State = "persisted"
	StateFailed      State = "failed"
)

// Fetcher is the subset of the eCFR client the pipeline needs.
type Fetcher interface {
	FetchAgencies(ctx context.Context) ([]ecfr.AgencyRecord, error)
	FetchTitleXML(ctx context.Context, title int, asOf string) ([]byte, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Config controls one ingestion run.
type Config struct {
	MaxAgencies   int
	Concurrency   int
	AsOfDate      string // YYYY-MM-DD; empty means the run date
	ArchivePrefix string
	NotifyTopic   string
}

// Result summarizes a persisted run.
type Result struct {
	RunID           string
	RunAt           time.Time
	Agencies        int
	PartialAgencies int
	TitlesFetched   int
	TitlesFailed    int
}

// Run executes one ingestion. A Run is single-use: construct, Execute once,
// discard.
type Run struct {
	id        string
	cfg       Config
	fetcher   Fetcher
	store     snapshot.Store
	engine    *scoring.Engine
	sink      archive.Sink
	publisher notify.Publisher
	clock     Clock
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

// NewRun constructs a Run. Archive sink and publisher may be nil, in which
// case archiving and notification are skipped.
func NewRun(
	cfg Config,
	fetcher Fetcher,
	store snapshot.Store,
	engine *scoring.Engine,
	sink archive.Sink,
	publisher notify.Publisher,
	clock Clock,
	logger *zap.Logger,
) *Run {
	if cfg.MaxAgencies <= 0 {
		cfg.MaxAgencies = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if sink == nil {
		sink = archive.NoopSink{}
	}
	if publisher == nil {
		publisher = notify.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Run{
		id:        uuid.NewString(),
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		engine:    engine,
		sink:      sink,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		state:     StateIdle,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// State returns the current lifecycle phase.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// titleResult is the outcome of one title fetch+parse.
type titleResult struct {
	title int
	doc   document.Document
	err   error
}

// Execute runs the full pipeline. Per-title failures degrade the affected
// agencies to partial snapshots; directory resolution, cancellation, and
// persistence failures abort the run with nothing persisted.
func (r *Run) Execute(ctx context.Context) (Result, error) {
	started := r.clock.Now()
	logger := r.logger.With(zap.String("run_id", r.id))

	r.setState(StateResolving)
	records, err := r.fetcher.FetchAgencies(ctx)
	if err != nil {
		return r.fail(logger, "failed", resolutionErr(err))
	}

	agencies := agency.Resolve(records)
	selected := agency.WithCFRReferences(records, r.cfg.MaxAgencies)
	logger.Info("resolved agency directory",
		zap.Int("directory_size", len(records)),
		zap.Int("selected", len(selected)),
	)

	asOf := r.cfg.AsOfDate
	if asOf == "" {
		asOf = started.Format("2006-01-02")
	}

	r.setState(StateFetching)
	titles := neededTitles(selected)
	docs, failures := r.fetchTitles(ctx, titles, asOf, logger)
	if ctx.Err() != nil {
		return r.fail(logger, "canceled", fmt.Errorf("run canceled: %w", ctx.Err()))
	}

	r.setState(StateAggregating)
	snapshots := r.aggregate(selected, agencies, docs, failures)

	runAt := r.clock.Now()
	if err := r.store.AppendRunBatch(ctx, runAt, snapshots); err != nil {
		return r.fail(logger, "failed", err)
	}
	r.setState(StatePersisted)

	result := Result{
		RunID:         r.id,
		RunAt:         runAt,
		Agencies:      len(snapshots),
		TitlesFetched: len(docs),
		TitlesFailed:  len(failures),
	}
	for _, snap := range snapshots {
		if snap.Partial {
			result.PartialAgencies++
		}
	}

	telemetry.IncRunStatus("persisted")
	telemetry.ObserveRunDuration(r.clock.Now().Sub(started))
	logger.Info("run persisted",
		zap.Time("run_at", runAt),
		zap.Int("agencies", result.Agencies),
		zap.Int("partial_agencies", result.PartialAgencies),
		zap.Int("titles_fetched", result.TitlesFetched),
		zap.Int("titles_failed", result.TitlesFailed),
	)

	r.notifyCompleted(ctx, result, logger)
	return result, nil
}

func (r *Run) fail(logger *zap.Logger, status string, err error) (Result, error) {
	r.setState(StateFailed)
	telemetry.IncRunStatus(status)
	logger.Error("run failed", zap.String("status", status), zap.Error(err))
	return Result{RunID: r.id}, err
}

// fetchTitles retrieves and parses every needed title through a bounded
// worker pool. Each title yields exactly one result regardless of internal
// retries. Workers stop dispatching new titles once the context is canceled.
func (r *Run) fetchTitles(
	ctx context.Context,
	titles []int,
	asOf string,
	logger *zap.Logger,
) (map[int]document.Document, map[int]error) {
	jobs := make(chan int)
	results := make(chan titleResult)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			telemetry.WorkerStarted()
			defer telemetry.WorkerFinished()
			for title := range jobs {
				results <- r.fetchOne(ctx, title, asOf)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, title := range titles {
			select {
			case jobs <- title:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	docs := make(map[int]document.Document)
	failures := make(map[int]error)
	for res := range results {
		if res.err != nil {
			failures[res.title] = res.err
			logger.Warn("title failed",
				zap.Int("title", res.title),
				zap.Error(res.err),
			)
			continue
		}
		docs[res.title] = res.doc
		logger.Info("title fetched",
			zap.Int("title", res.title),
			zap.Int("word_count", res.doc.WordCount),
		)
	}
	return docs, failures
}

func (r *Run) fetchOne(ctx context.Context, title int, asOf string) titleResult {
	raw, err := r.fetcher.FetchTitleXML(ctx, title, asOf)
	if err != nil {
		telemetry.IncTitleResult("fetch_error")
		return titleResult{title: title, err: err}
	}

	r.archiveTitle(ctx, title, raw)

	doc, err := document.Parse(raw)
	if err != nil {
		telemetry.IncTitleResult("parse_error")
		return titleResult{title: title, err: err}
	}
	telemetry.IncTitleResult("ok")
	return titleResult{title: title, doc: doc}
}

// archiveTitle retains the raw XML when an archive sink is configured.
// Archive failures are logged, never escalated: the parse already has the
// bytes in hand.
func (r *Run) archiveTitle(ctx context.Context, title int, raw []byte) {
	if _, ok := r.sink.(archive.NoopSink); ok {
		return
	}
	prefix := strings.Trim(r.cfg.ArchivePrefix, "/")
	if prefix == "" {
		prefix = "runs"
	}
	path := fmt.Sprintf("%s/%s/title-%d.xml", prefix, r.id, title)
	if _, err := r.sink.Put(ctx, path, "application/xml", raw); err != nil {
		r.logger.Warn("archive title failed",
			zap.String("run_id", r.id),
			zap.Int("title", title),
			zap.Error(err),
		)
	}
}

// aggregate builds one snapshot per selected agency. Metrics are computed
// once over the agency's concatenated text, so the complexity score is
// agency-granular. An agency with any failed or missing title is partial; an
// agency with no surviving titles gets an explicitly empty partial snapshot
// rather than silently reusing stale metrics.
func (r *Run) aggregate(
	selected []ecfr.AgencyRecord,
	agencies map[string]*agency.Agency,
	docs map[int]document.Document,
	failures map[int]error,
) []snapshot.Snapshot {
	snapshots := make([]snapshot.Snapshot, 0, len(selected))
	for _, rec := range selected {
		var (
			textParts []string
			checksums []string
			partial   bool
		)
		for _, ref := range rec.CFRReferences {
			doc, ok := docs[ref.Title]
			if !ok {
				if _, failed := failures[ref.Title]; failed {
					partial = true
				}
				continue
			}
			if chapter, ok := doc.Chapters[ref.Chapter]; ok && ref.Chapter != "" {
				textParts = append(textParts, chapter.Text)
			} else {
				textParts = append(textParts, doc.Text)
			}
			checksums = append(checksums, scoring.Fingerprint(doc.Text))
		}

		combined := strings.Join(textParts, " ")
		metrics := r.engine.Score(combined)

		parentSlug := ""
		if a, ok := agencies[rec.Slug]; ok {
			parentSlug = a.ParentSlug
		}

		snapshots = append(snapshots, snapshot.Snapshot{
			Slug:           rec.Slug,
			Name:           rec.Name,
			ParentSlug:     parentSlug,
			WordCount:      metrics.WordCount,
			Fingerprint:    scoring.AggregateFingerprint(checksums),
			Complexity:     metrics.Complexity,
			LexiconVersion: r.engine.LexiconVersion(),
			CFRReferences:  rec.CFRReferences,
			Partial:        partial,
		})
	}

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Slug < snapshots[j].Slug })
	return snapshots
}

// notifyCompleted publishes the run-completed event. The batch is already
// committed, so publish failures are logged rather than failing the run.
func (r *Run) notifyCompleted(ctx context.Context, result Result, logger *zap.Logger) {
	if _, ok := r.publisher.(notify.NoopPublisher); ok {
		return
	}
	event := notify.RunCompleted{
		RunID:        result.RunID,
		RunAt:        result.RunAt,
		AgencyCount:  result.Agencies,
		PartialCount: result.PartialAgencies,
	}
	if _, err := r.publisher.Publish(ctx, r.cfg.NotifyTopic, event); err != nil {
		logger.Warn("run-completed publish failed", zap.Error(err))
	}
}

func resolutionErr(err error) error {
	var resErr *ecfr.ResolutionError
	if errors.As(err, &resErr) {
		return err
	}
	return &ecfr.ResolutionError{Err: err}
}

func neededTitles(selected []ecfr.AgencyRecord) []int {
	seen := map[int]bool{}
	var titles []int
	for _, rec := range selected {
		for _, ref := range rec.CFRReferences {
			if ref.Title > 0 && !seen[ref.Title] {
				seen[ref.Title] = true
				titles = append(titles, ref.Title)
			}
		}
	}
	sort.Ints(titles)
	return titles
}
