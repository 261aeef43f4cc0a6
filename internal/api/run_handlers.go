package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pinsweep/internal/store"
)

const (
	defaultRunLimit      = 50
	maxRunLimit          = 500
	defaultFindingsLimit = 100
	maxFindingsLimit     = 1000
	handlerTimeout       = 3 * time.Second
)

// RunHandler exposes read-only run history endpoints.
type RunHandler struct {
	repo    store.RunRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the repository and logger.
func NewRunHandler(repo store.RunRepository, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		repo:    repo,
		timeout: handlerTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /api/runs?status=&limit=&offset=. It returns a JSON
// object {"runs": [...]} on success, 400 for invalid filters, 503 when the
// repo is unavailable, or 500 if the repository call fails.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	statusParam := strings.TrimSpace(r.URL.Query().Get("status"))
	var status *store.RunStatus
	if statusParam != "" {
		statusVal, parseErr := parseStatus(statusParam)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &statusVal
	}
	runs, err := h.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs": toRunDTOs(runs),
	})
}

// GetRun handles GET /api/runs/{run_id}. It returns {"run": {...}} on
// success, 400 for malformed IDs, 404 when the repository reports
// store.ErrNotFound, 503 if the repo is not initialized, or 500 otherwise.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// ListRunOutcomes handles GET /api/runs/{run_id}/outcomes. It returns
// {"outcomes": [...]} on success, 400 for malformed IDs, 503 when the
// repository is missing, or 500 for repository errors.
func (h *RunHandler) ListRunOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcomes, err := h.repo.ListRunOutcomes(ctx, runID)
	if err != nil {
		h.logger.Error("list run outcomes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list run outcomes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": toOutcomeDTOs(outcomes),
	})
}

// ListFindings handles GET /api/runs/{run_id}/findings?limit=&offset=. It
// returns {"findings": [...]} on success, 400 for invalid query parameters,
// 503 when the repository is missing, or 500 for repository errors.
func (h *RunHandler) ListFindings(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	runID, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultFindingsLimit, maxFindingsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	findings, err := h.repo.ListFindings(ctx, runID, limit, offset)
	if err != nil {
		h.logger.Error("list findings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list findings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"findings": toFindingDTOs(findings),
	})
}

func parseRunID(r *http.Request) (uuid.UUID, error) {
	runIDStr := chi.URLParam(r, "run_id")
	if runIDStr == "" {
		return uuid.UUID{}, errors.New("run_id is required")
	}
	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid run_id")
	}
	return runID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (store.RunStatus, error) {
	switch strings.ToLower(input) {
	case "", "running":
		return store.RunRunning, nil
	case "success":
		return store.RunSuccess, nil
	case "error", "failed", "failure":
		return store.RunError, nil
	default:
		return "", errors.New("invalid status")
	}
}

func toRunDTOs(in []store.RunRecord) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run store.RunRecord) runDTO {
	dto := runDTO{
		RunID:     run.RunID.String(),
		StartedAt: run.StartedAt,
		Status:    string(run.Status),
		Error:     run.ErrorMessage,
	}
	if run.FinishedAt != nil {
		dto.FinishedAt = run.FinishedAt
	}
	return dto
}

func toOutcomeDTOs(in []store.OutcomeStats) []outcomeDTO {
	out := make([]outcomeDTO, 0, len(in))
	for _, o := range in {
		out = append(out, outcomeDTO{
			Outcome:    o.Outcome,
			LastUpdate: o.LastUpdate,
			Probes:     o.Probes,
			Probe2xx:   o.Probe2xx,
			Probe3xx:   o.Probe3xx,
			Probe4xx:   o.Probe4xx,
			Probe5xx:   o.Probe5xx,
			ProbeOther: o.ProbeOther,
		})
	}
	return out
}

func toFindingDTOs(in []store.FindingRecord) []findingDTO {
	out := make([]findingDTO, 0, len(in))
	for _, f := range in {
		out = append(out, findingDTO{
			Pin:        f.Pin,
			Summary:    f.Summary,
			Digest:     f.Digest,
			ArchiveURI: f.ArchiveURI,
			FoundAt:    f.FoundAt,
		})
	}
	return out
}

type runDTO struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Error      *string    `json:"error,omitempty"`
}

type outcomeDTO struct {
	Outcome    string    `json:"outcome"`
	LastUpdate time.Time `json:"last_update"`
	Probes     int64     `json:"probes"`
	Probe2xx   int64     `json:"probe_2xx"`
	Probe3xx   int64     `json:"probe_3xx"`
	Probe4xx   int64     `json:"probe_4xx"`
	Probe5xx   int64     `json:"probe_5xx"`
	ProbeOther int64     `json:"probe_other"`
}

type findingDTO struct {
	Pin        string    `json:"pin"`
	Summary    string    `json:"summary"`
	Digest     string    `json:"digest,omitempty"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	FoundAt    time.Time `json:"found_at"`
}
