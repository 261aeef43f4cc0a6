package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the scan_runs status column.
type RunStatus string

// Run statuses persisted in scan_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// RunRecord models the scan_runs table for API responses.
type RunRecord struct {
	// RunID is the sweep identifier shared with the engine and its events.
	RunID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run is marked success/error.
	FinishedAt *time.Time
	// Status is running/success/error.
	Status RunStatus
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// OutcomeStats captures per-outcome probe aggregation for one run.
type OutcomeStats struct {
	// RunID is the owning sweep.
	RunID uuid.UUID
	// Outcome is the classification label (match, potential, rejected, error).
	Outcome string
	// LastUpdate captures the timestamp of the most recent aggregate.
	LastUpdate time.Time
	// Probes counts completed probes for the outcome.
	Probes int64
	// Probe2xx-Other hold per-status-class counts for diagnostics.
	Probe2xx   int64
	Probe3xx   int64
	Probe4xx   int64
	Probe5xx   int64
	ProbeOther int64
}

// FindingRecord models one confirmed PIN in the findings table.
type FindingRecord struct {
	// RunID is the sweep that confirmed the PIN.
	RunID uuid.UUID
	// Pin is the confirmed candidate.
	Pin string
	// Summary is the content extracted from the matched page.
	Summary string
	// Digest is the SHA-256 of the raw response body.
	Digest string
	// ArchiveURI points at the archived body, when archiving is enabled.
	ArchiveURI string
	// FoundAt is when the engine confirmed the match.
	FoundAt time.Time
}

// RunRepository persists sweep lifecycle, aggregates, and findings.
type RunRepository interface {
	// UpsertRunStart inserts (or idempotently updates) the started_at timestamp.
	UpsertRunStart(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// UpsertOutcomeStats applies probe deltas per (run, outcome, statusClass).
	UpsertOutcomeStats(
		ctx context.Context,
		runID uuid.UUID,
		outcome string,
		deltaProbes int64,
		statusClass string,
		at time.Time,
	) error
	// RecordFinding stores one confirmed PIN; replays of the same
	// (run, pin) pair are ignored.
	RecordFinding(ctx context.Context, finding FindingRecord) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (RunRecord, error)
	// ListRuns returns runs filtered by optional status plus limit/offset.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]RunRecord, error)
	// ListRunOutcomes returns aggregated outcome stats for one run.
	ListRunOutcomes(ctx context.Context, runID uuid.UUID) ([]OutcomeStats, error)
	// ListFindings returns confirmed PINs for one run, newest first.
	ListFindings(ctx context.Context, runID uuid.UUID, limit, offset int) ([]FindingRecord, error)
}
