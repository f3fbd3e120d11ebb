// Package postgres records capture run history in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/weekly-snapshots/internal/report"
)

const defaultTable = "snapshot_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrNoRuns is returned by LastRun when nothing has been recorded yet.
var ErrNoRuns = errors.New("no recorded runs")

// RunStoreConfig controls the Postgres connection pool used for run rows.
type RunStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pgPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore writes one row per completed run.
type RunStore struct {
	pool  pgPool
	table string
}

// RunRecord is the summary stored for a run.
type RunRecord struct {
	RunID          string
	ExecutedAt     time.Time
	Week           string
	TotalURLs      int
	Succeeded      int
	Failed         int
	ElapsedSeconds float64
	TotalBytes     int64
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RunStore{pool: pool, table: table}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRunStoreWithPool(pool pgPool, table string) (*RunStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the runs table when it does not exist.
func (s *RunStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id          text PRIMARY KEY,
	executed_at     timestamptz NOT NULL,
	week            text NOT NULL,
	total_urls      integer NOT NULL,
	succeeded       integer NOT NULL,
	failed          integer NOT NULL,
	elapsed_seconds double precision NOT NULL,
	total_bytes     bigint NOT NULL,
	report          jsonb NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// RecordRun inserts the run summary and the full report document. Recording
// the same run twice is a no-op.
func (s *RunStore) RecordRun(ctx context.Context, rep report.Report) error {
	if s == nil || s.pool == nil {
		return errors.New("run store is not configured")
	}
	if rep.RunID == "" {
		return errors.New("run id is required")
	}
	doc, err := report.Marshal(rep)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	executed_at,
	week,
	total_urls,
	succeeded,
	failed,
	elapsed_seconds,
	total_bytes,
	report
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (run_id) DO NOTHING`, s.table)

	st := rep.Stats
	args := []any{
		rep.RunID,
		rep.ExecutedAt,
		rep.Week,
		st.TotalURLs,
		st.Succeeded,
		st.Failed,
		st.ElapsedSeconds,
		st.TotalBytes,
		doc,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// LastRun returns the most recently executed run.
func (s *RunStore) LastRun(ctx context.Context) (RunRecord, error) {
	if s == nil || s.pool == nil {
		return RunRecord{}, errors.New("run store is not configured")
	}
	query := fmt.Sprintf(`
SELECT run_id, executed_at, week, total_urls, succeeded, failed, elapsed_seconds, total_bytes
FROM %s
ORDER BY executed_at DESC
LIMIT 1`, s.table)

	var rec RunRecord
	err := s.pool.QueryRow(ctx, query).Scan(
		&rec.RunID,
		&rec.ExecutedAt,
		&rec.Week,
		&rec.TotalURLs,
		&rec.Succeeded,
		&rec.Failed,
		&rec.ElapsedSeconds,
		&rec.TotalBytes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RunRecord{}, ErrNoRuns
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("query last run: %w", err)
	}
	return rec, nil
}
