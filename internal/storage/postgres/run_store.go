// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pinsweep/internal/store"
)

// RunStoreConfig controls the Postgres connection pool used for run history.
type RunStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	pool querier
}

// NewRunStore creates a Postgres-backed RunStore using the provided config.
func NewRunStore(ctx context.Context, cfg RunStoreConfig) (*RunStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewRunStoreWithPool(pool querier) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertRunStart inserts or idempotently updates a run's start row.
func (s *RunStore) UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO scan_runs (run_id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status
		WHERE scan_runs.status <> EXCLUDED.status;
	`
	_, err := s.pool.Exec(ctx, query, runID, startedAt, store.RunRunning)
	if err != nil {
		return fmt.Errorf("upsert run start: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished with a status and optional error message.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	query := `
		UPDATE scan_runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE run_id = $4;
	`
	_, err := s.pool.Exec(ctx, query, finishedAt, status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// UpsertOutcomeStats updates the probe aggregates for (run, outcome).
func (s *RunStore) UpsertOutcomeStats(
	ctx context.Context,
	runID uuid.UUID,
	outcome string,
	deltaProbes int64,
	statusClass string,
	at time.Time,
) error {
	column, err := statusColumn(statusClass)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE outcome_stats
		SET probes = probes + $1, %s = %s + $1, last_update = $2
		WHERE run_id = $3 AND outcome = $4;
	`, column, column)
	res, err := s.pool.Exec(ctx, query, deltaProbes, at, runID, outcome)
	if err != nil {
		return fmt.Errorf("update outcome stats: %w", err)
	}
	if res.RowsAffected() == 0 {
		var p2xx, p3xx, p4xx, p5xx, pOther int64
		switch statusClass {
		case "2xx":
			p2xx = deltaProbes
		case "3xx":
			p3xx = deltaProbes
		case "4xx":
			p4xx = deltaProbes
		case "5xx":
			p5xx = deltaProbes
		case "other":
			pOther = deltaProbes
		}

		query = `
			INSERT INTO outcome_stats (run_id, outcome, last_update, probes, probe_2xx, probe_3xx, probe_4xx, probe_5xx, probe_other)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (run_id, outcome) DO NOTHING;
		`
		_, err = s.pool.Exec(
			ctx,
			query,
			runID,
			outcome,
			at,
			deltaProbes,
			p2xx,
			p3xx,
			p4xx,
			p5xx,
			pOther,
		)
		if err != nil {
			return fmt.Errorf("insert outcome stats: %w", err)
		}
	}
	return nil
}

func statusColumn(statusClass string) (string, error) {
	switch statusClass {
	case "2xx":
		return "probe_2xx", nil
	case "3xx":
		return "probe_3xx", nil
	case "4xx":
		return "probe_4xx", nil
	case "5xx":
		return "probe_5xx", nil
	case "other":
		return "probe_other", nil
	default:
		return "", fmt.Errorf("unknown status class: %s", statusClass)
	}
}

// RecordFinding inserts a confirmed PIN row; replays of the same (run, pin)
// pair are ignored.
func (s *RunStore) RecordFinding(ctx context.Context, finding store.FindingRecord) error {
	query := `
		INSERT INTO findings (run_id, pin, summary, digest, archive_uri, found_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, pin) DO NOTHING;
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		finding.RunID,
		finding.Pin,
		finding.Summary,
		finding.Digest,
		finding.ArchiveURI,
		finding.FoundAt,
	)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

// GetRun retrieves a single run by its ID.
func (s *RunStore) GetRun(ctx context.Context, runID uuid.UUID) (store.RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at, status, error_message
		FROM scan_runs
		WHERE run_id = $1;
	`
	var run store.RunRecord
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.RunRecord{}, store.ErrNotFound
		}
		return store.RunRecord{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves a list of runs, with optional status filtering.
func (s *RunStore) ListRuns(
	ctx context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at, status, error_message
		FROM scan_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		var run store.RunRecord
		err := rows.Scan(
			&run.RunID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListRunOutcomes retrieves aggregated outcome statistics for a given run.
func (s *RunStore) ListRunOutcomes(ctx context.Context, runID uuid.UUID) ([]store.OutcomeStats, error) {
	query := `
		SELECT run_id, outcome, last_update, probes, probe_2xx, probe_3xx, probe_4xx, probe_5xx, probe_other
		FROM outcome_stats
		WHERE run_id = $1
		ORDER BY outcome;
	`
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run outcomes: %w", err)
	}
	defer rows.Close()

	var stats []store.OutcomeStats
	for rows.Next() {
		var stat store.OutcomeStats
		err := rows.Scan(
			&stat.RunID,
			&stat.Outcome,
			&stat.LastUpdate,
			&stat.Probes,
			&stat.Probe2xx,
			&stat.Probe3xx,
			&stat.Probe4xx,
			&stat.Probe5xx,
			&stat.ProbeOther,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outcome stats row: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// ListFindings retrieves confirmed PINs for a given run, newest first.
func (s *RunStore) ListFindings(
	ctx context.Context,
	runID uuid.UUID,
	limit,
	offset int,
) ([]store.FindingRecord, error) {
	query := `
		SELECT run_id, pin, summary, digest, archive_uri, found_at
		FROM findings
		WHERE run_id = $1
		ORDER BY found_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var findings []store.FindingRecord
	for rows.Next() {
		var finding store.FindingRecord
		err := rows.Scan(
			&finding.RunID,
			&finding.Pin,
			&finding.Summary,
			&finding.Digest,
			&finding.ArchiveURI,
			&finding.FoundAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}
