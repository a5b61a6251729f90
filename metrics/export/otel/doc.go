// Package otel publishes portal counters and the API latency histogram as
// OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per portal counter. The
// API latency histogram becomes a "_bucket" gauge with one series per "le"
// attribute and a "_count" gauge. A single callback reads
// [goBlog.Portal.MetricsSnapshot] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers supply the Meter.
//   - Mutate portal state.
package otel
