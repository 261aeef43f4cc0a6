// Package sinks holds the consumers a sweep's progress hub fans out to:
// Prometheus gauges and counters, the run repository, and structured
// logs. The hub drops a batch once a sink errors on it, so Consume
// implementations need no internal retry.
package sinks
