// Package progress provides the event primitives, non-blocking hub, and
// emitter interfaces the worker pool uses to report download progress. It
// batches events on a background goroutine and fans them out to pluggable
// sinks such as the run log, Prometheus metrics, or live statistics.
package progress
