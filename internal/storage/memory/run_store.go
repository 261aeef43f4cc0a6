package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/pinsweep/internal/store"
)

// RunStore provides an in-memory store.RunRepository for development and
// tests. Semantics mirror the Postgres implementation: completing an
// unknown run is a no-op and finding replays are ignored.
type RunStore struct {
	mu       sync.RWMutex
	runs     map[uuid.UUID]store.RunRecord
	outcomes map[uuid.UUID]map[string]*store.OutcomeStats
	findings map[uuid.UUID][]store.FindingRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:     make(map[uuid.UUID]store.RunRecord),
		outcomes: make(map[uuid.UUID]map[string]*store.OutcomeStats),
		findings: make(map[uuid.UUID][]store.FindingRecord),
	}
}

// UpsertRunStart records the run as running. Repeats keep the original
// start time.
func (s *RunStore) UpsertRunStart(_ context.Context, runID uuid.UUID, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[runID]; exists {
		return nil
	}
	s.runs[runID] = store.RunRecord{
		RunID:     runID,
		StartedAt: startedAt,
		Status:    store.RunRunning,
	}
	return nil
}

// CompleteRun marks the run finished with the provided status and error.
func (s *RunStore) CompleteRun(
	_ context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil
	}
	run.FinishedAt = pointerTime(finishedAt)
	run.Status = status
	run.ErrorMessage = errMsg
	s.runs[runID] = run
	return nil
}

// UpsertOutcomeStats applies probe deltas per (run, outcome, statusClass).
func (s *RunStore) UpsertOutcomeStats(
	_ context.Context,
	runID uuid.UUID,
	outcome string,
	deltaProbes int64,
	statusClass string,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byOutcome := s.outcomes[runID]
	if byOutcome == nil {
		byOutcome = make(map[string]*store.OutcomeStats)
		s.outcomes[runID] = byOutcome
	}
	stat := byOutcome[outcome]
	if stat == nil {
		stat = &store.OutcomeStats{RunID: runID, Outcome: outcome}
		byOutcome[outcome] = stat
	}

	switch statusClass {
	case "2xx":
		stat.Probe2xx += deltaProbes
	case "3xx":
		stat.Probe3xx += deltaProbes
	case "4xx":
		stat.Probe4xx += deltaProbes
	case "5xx":
		stat.Probe5xx += deltaProbes
	case "other":
		stat.ProbeOther += deltaProbes
	default:
		return fmt.Errorf("unknown status class: %s", statusClass)
	}
	stat.Probes += deltaProbes
	if at.After(stat.LastUpdate) {
		stat.LastUpdate = at
	}
	return nil
}

// RecordFinding stores a confirmed PIN; the same (run, pin) pair is kept once.
func (s *RunStore) RecordFinding(_ context.Context, finding store.FindingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.findings[finding.RunID] {
		if existing.Pin == finding.Pin {
			return nil
		}
	}
	s.findings[finding.RunID] = append(s.findings[finding.RunID], finding)
	return nil
}

// GetRun fetches a run by ID or returns store.ErrNotFound.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.RunRecord{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *RunStore) ListRuns(
	_ context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]store.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return paginate(runs, limit, offset), nil
}

// ListRunOutcomes returns aggregated outcome stats for one run.
func (s *RunStore) ListRunOutcomes(_ context.Context, runID uuid.UUID) ([]store.OutcomeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byOutcome := s.outcomes[runID]
	out := make([]store.OutcomeStats, 0, len(byOutcome))
	for _, stat := range byOutcome {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Outcome < out[j].Outcome
	})
	return out, nil
}

// ListFindings returns confirmed PINs for one run, newest first.
func (s *RunStore) ListFindings(
	_ context.Context,
	runID uuid.UUID,
	limit,
	offset int,
) ([]store.FindingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	findings := append([]store.FindingRecord(nil), s.findings[runID]...)
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].FoundAt.After(findings[j].FoundAt)
	})
	return paginate(findings, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
