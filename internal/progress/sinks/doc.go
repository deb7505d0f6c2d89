// Package sinks implements progress consumers: structured logging and
// Prometheus gauges. Each satisfies progress.Sink.
package sinks
