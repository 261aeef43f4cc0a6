package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalProbes tracks the number of candidate probes dispatched.
	TotalProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_probes_total",
		Help: "The total number of candidate probes sent.",
	})
	// TotalMatches tracks the number of confirmed finds.
	TotalMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_matches_total",
		Help: "The total number of candidates confirmed as finds.",
	})
	// TotalPotentials tracks responses that matched neither indicator.
	TotalPotentials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_potentials_total",
		Help: "The total number of candidates logged as potential finds.",
	})
	// TotalRejections tracks candidates the target explicitly refused.
	TotalRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_rejections_total",
		Help: "The total number of candidates rejected by the target.",
	})
	// TotalProbeErrors tracks probes that failed at the transport level.
	TotalProbeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_probe_errors_total",
		Help: "The total number of probes that failed with a network error.",
	})
	// TotalCooldowns tracks throttle pauses forced by the target.
	TotalCooldowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_cooldowns_total",
		Help: "The total number of times the sweep paused for rate limiting.",
	})
	// TotalResumeSkips tracks candidates skipped via the resume set.
	TotalResumeSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pinsweep_resume_skips_total",
		Help: "The total number of candidates skipped as previously found.",
	})
)
