// Package postgres provides the Postgres-backed snapshot store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regwatch/ecfr-ingest/internal/ecfr"
	"github.com/regwatch/ecfr-ingest/internal/snapshot"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for snapshot rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes snapshot rows into Postgres, append-only.
type Store struct {
	pool  pgxPool
	table string
}

// NewStore creates a Postgres-backed snapshot store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "agency_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "agency_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the snapshot table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	run_at TIMESTAMPTZ NOT NULL,
	agency_slug TEXT NOT NULL,
	agency_name TEXT NOT NULL,
	parent_slug TEXT,
	word_count BIGINT NOT NULL,
	fingerprint TEXT NOT NULL,
	complexity_score DOUBLE PRECISION NOT NULL,
	lexicon_version TEXT NOT NULL,
	cfr_references JSONB NOT NULL,
	partial BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE (agency_slug, run_at)
)`, s.table)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	if _, err := tx.Exec(ctx, ddl); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// AppendRunBatch inserts all rows of one run inside a single transaction.
// Any insert failure rolls the whole batch back.
func (s *Store) AppendRunBatch(ctx context.Context, runAt time.Time, snapshots []snapshot.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &snapshot.PersistenceError{Err: fmt.Errorf("begin: %w", err)}
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_at,
	agency_slug,
	agency_name,
	parent_slug,
	word_count,
	fingerprint,
	complexity_score,
	lexicon_version,
	cfr_references,
	partial
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	for _, snap := range snapshots {
		refsJSON, err := json.Marshal(snap.CFRReferences)
		if err != nil {
			_ = tx.Rollback(ctx)
			return &snapshot.PersistenceError{Err: fmt.Errorf("marshal cfr references: %w", err)}
		}
		args := []any{
			runAt,
			snap.Slug,
			snap.Name,
			nullableString(snap.ParentSlug),
			snap.WordCount,
			snap.Fingerprint,
			snap.Complexity,
			snap.LexiconVersion,
			refsJSON,
			snap.Partial,
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			_ = tx.Rollback(ctx)
			return &snapshot.PersistenceError{Err: fmt.Errorf("insert snapshot %s: %w", snap.Slug, err)}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &snapshot.PersistenceError{Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

const snapshotColumns = `run_at, agency_slug, agency_name, parent_slug, word_count, fingerprint, complexity_score, lexicon_version, cfr_references, partial`

// LatestSnapshot returns the most recent snapshot for the agency.
func (s *Store) LatestSnapshot(ctx context.Context, slug string) (snapshot.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE agency_slug = $1 ORDER BY run_at DESC LIMIT 1`,
		snapshotColumns, s.table,
	)
	snap, err := scanSnapshot(s.pool.QueryRow(ctx, query, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return snapshot.Snapshot{}, snapshot.ErrNoSnapshot
	}
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("query latest snapshot: %w", err)
	}
	return snap, nil
}

// History returns all snapshots for the agency ordered by run timestamp
// ascending.
func (s *Store) History(ctx context.Context, slug string) ([]snapshot.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE agency_slug = $1 ORDER BY run_at ASC`,
		snapshotColumns, s.table,
	)
	rows, err := s.pool.Query(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// TwoMostRecent returns the previous and latest snapshots for the agency.
func (s *Store) TwoMostRecent(ctx context.Context, slug string) (snapshot.Snapshot, snapshot.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE agency_slug = $1 ORDER BY run_at DESC LIMIT 2`,
		snapshotColumns, s.table,
	)
	rows, err := s.pool.Query(ctx, query, slug)
	if err != nil {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, fmt.Errorf("query two most recent: %w", err)
	}
	defer rows.Close()
	snaps, err := collectSnapshots(rows)
	if err != nil {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, err
	}
	if len(snaps) < 2 {
		return snapshot.Snapshot{}, snapshot.Snapshot{}, snapshot.ErrInsufficientHistory
	}
	// Rows arrive latest-first.
	return snaps[1], snaps[0], nil
}

// LatestRun returns every snapshot stamped with the most recent run
// timestamp.
func (s *Store) LatestRun(ctx context.Context) ([]snapshot.Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE run_at = (SELECT MAX(run_at) FROM %s) ORDER BY agency_slug ASC`,
		snapshotColumns, s.table, s.table,
	)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	defer rows.Close()
	snaps, err := collectSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, snapshot.ErrNoSnapshot
	}
	return snaps, nil
}

func collectSnapshots(rows pgx.Rows) ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (snapshot.Snapshot, error) {
	var (
		snap       snapshot.Snapshot
		parentSlug *string
		refsJSON   []byte
	)
	err := row.Scan(
		&snap.RunAt,
		&snap.Slug,
		&snap.Name,
		&parentSlug,
		&snap.WordCount,
		&snap.Fingerprint,
		&snap.Complexity,
		&snap.LexiconVersion,
		&refsJSON,
		&snap.Partial,
	)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	if parentSlug != nil {
		snap.ParentSlug = *parentSlug
	}
	if len(refsJSON) > 0 {
		if err := json.Unmarshal(refsJSON, &snap.CFRReferences); err != nil {
			return snapshot.Snapshot{}, fmt.Errorf("unmarshal cfr references: %w", err)
		}
	}
	if snap.CFRReferences == nil {
		snap.CFRReferences = []ecfr.CFRReference{}
	}
	return snap, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
