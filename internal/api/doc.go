// Package api hosts the status HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/run for the live sweep snapshot.
//   - GET /api/runs and /api/runs/{run_id}/... for run history via the
//     RunRepository interface.
package api
