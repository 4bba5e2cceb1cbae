// Package sinks implements concrete progress consumers: the structured run
// log, Prometheus metrics, and the live statistics snapshot behind the
// status endpoint. Each sink satisfies the progress.Sink interface and is
// safe for repeated Consume/Close cycles.
package sinks
