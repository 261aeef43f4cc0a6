// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the sweep uses to report its progress. It batches events on a
// background goroutine and fans them out to pluggable sinks such as Prometheus
// metrics or persistent storage, keeping observability out of the probe path.
package progress
