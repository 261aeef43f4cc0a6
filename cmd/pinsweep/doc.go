// Package main hosts the pinsweep entrypoint.
//
// Architecture overview:
//   - Sweep engine: internal/scan.Sweeper walks the configured PIN range one candidate at a time,
//     POSTs each one to the target form endpoint, and classifies the response body as a match, a
//     potential hit, or a rejection. Confirmed finds recorded in the found log are skipped on later
//     runs, so the sweep resumes cleanly after interruption.
//   - State journal: internal/state.Journal appends every find and potential hit to plain-text logs
//     and mirrors the extracted content of the current run into a scratch file. The found log doubles
//     as the resume source; journal write failures are logged and never stop the sweep.
//   - Pacing & backoff: a fixed delay separates probes, transport errors trigger a short backoff
//     before the next candidate, and rate-limit statuses (429/503/504 by default) pause the sweep
//     for a cooldown period. The engine never retries a candidate.
//   - Persistence & fanout: matched response bodies are hashed and optionally archived to the
//     configured blob store (memory/local/GCS). Run lifecycle, per-outcome stats, and findings are
//     optionally persisted to Postgres, and a compact Pub/Sub notification is published per find when
//     a topic is configured. Progress events are buffered and fanned out to configured sinks.
//   - Configuration & plumbing: Viper populates config from file/env; zap provides structured
//     logging; Prometheus metrics are exported via the middleware and /metrics handler of the
//     optional status server, which also serves live run stats and run history.
//
// Operational notes:
//   - Concurrency model: the sweep itself is single-threaded by design; the status server and the
//     progress hub run alongside it. Shutdown is coordinated via context cancellation from SIGINT or
//     SIGTERM, and the current run's partial state stays valid for the next start.
//   - Observability: zap logs carry the run ID and PIN at key transitions; Prometheus counters track
//     probes, matches, and cooldowns; the progress hub batches lifecycle events for downstream sinks.
//   - Authorization: the tool drives credential guessing against whatever endpoint it is pointed at.
//     Point it only at systems you own or are explicitly authorized to test.
//
// Quick checklist:
//   - Configure env vars: PINSWEEP_TARGET_URL, PINSWEEP_SCAN_START_PIN, PINSWEEP_SCAN_END_PIN (or
//     bare END_PIN), PINSWEEP_SCAN_DELAY_MS, PINSWEEP_SERVER_ENABLED, archive (PINSWEEP_ARCHIVE_*),
//     pubsub, and the database DSN when persistence beyond the plain-text logs is required.
//   - Run locally: go run ./cmd/pinsweep scan --config pinsweep.yaml (or rely solely on env
//     overrides).
//   - Inspect state: pinsweep state lists the PINs a new run would skip; pinsweep probe <pin> checks
//     a single candidate without touching the journals.
package main
