// Package progress tracks how far a harvest run has come. The Tracker keeps
// atomic counters that any goroutine can snapshot, and publishes lifecycle
// events into a non-blocking Hub that batches them out to pluggable sinks
// such as structured logs or Prometheus gauges.
package progress
