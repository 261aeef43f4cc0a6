// Package scan defines the sweep engine and the core types shared
// across its subsystems.
package scan

import (
	"sync/atomic"
	"time"
)

// Outcome is the classification assigned to one probed candidate.
type Outcome string

// Outcome values attached to probe events and counters.
const (
	OutcomeMatch     Outcome = "match"
	OutcomePotential Outcome = "potential"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)

// Phase is the lifecycle state of a sweep.
type Phase string

// Phase values reported by Stats.
const (
	PhaseIdle     Phase = "idle"
	PhaseScanning Phase = "scanning"
	PhaseFinished Phase = "finished"
)

// Config carries the sweep parameters.
type Config struct {
	RunID              string
	StartPin           int
	EndPin             int
	Delay              time.Duration
	TransientBackoff   time.Duration
	Cooldown           time.Duration
	CooldownStatuses   []int
	ArchivePrefix      string
	ArchiveContentType string
	NotifyTopic        string
}

// ProbeResult is the raw material returned by a Prober implementation.
type ProbeResult struct {
	StatusCode int
	Body       string
	Duration   time.Duration
}

// Finding is a confirmed match enriched for archival and notification.
type Finding struct {
	RunID      string    `json:"run_id"`
	Pin        string    `json:"pin"`
	Summary    string    `json:"summary"`
	Digest     string    `json:"digest,omitempty"`
	ArchiveURI string    `json:"archive_uri,omitempty"`
	FoundAt    time.Time `json:"found_at"`
}

// RunStats is a point-in-time snapshot of the sweep counters.
type RunStats struct {
	Phase      Phase `json:"phase"`
	CurrentPin int64 `json:"current_pin"`
	Probes     int64 `json:"probes"`
	Matches    int64 `json:"matches"`
	Potentials int64 `json:"potentials"`
	Rejections int64 `json:"rejections"`
	Skipped    int64 `json:"skipped"`
	Transient  int64 `json:"transient_errors"`
	Cooldowns  int64 `json:"cooldowns"`
}

// Summary is returned once a sweep completes.
type Summary struct {
	RunID        string        `json:"run_id"`
	StartPin     int           `json:"start_pin"`
	EndPin       int           `json:"end_pin"`
	Stats        RunStats      `json:"stats"`
	Elapsed      time.Duration `json:"elapsed"`
	ScratchBytes int64         `json:"scratch_bytes"`
}

const (
	phaseIdle int32 = iota
	phaseScanning
	phaseFinished
)

// counters is the live backing for RunStats. The sweep goroutine writes,
// the status API reads, so every field is atomic.
type counters struct {
	phase      atomic.Int32
	currentPin atomic.Int64
	probes     atomic.Int64
	matches    atomic.Int64
	potentials atomic.Int64
	rejections atomic.Int64
	skipped    atomic.Int64
	transient  atomic.Int64
	cooldowns  atomic.Int64
}

func (c *counters) snapshot() RunStats {
	phase := PhaseIdle
	switch c.phase.Load() {
	case phaseScanning:
		phase = PhaseScanning
	case phaseFinished:
		phase = PhaseFinished
	}
	return RunStats{
		Phase:      phase,
		CurrentPin: c.currentPin.Load(),
		Probes:     c.probes.Load(),
		Matches:    c.matches.Load(),
		Potentials: c.potentials.Load(),
		Rejections: c.rejections.Load(),
		Skipped:    c.skipped.Load(),
		Transient:  c.transient.Load(),
		Cooldowns:  c.cooldowns.Load(),
	}
}
