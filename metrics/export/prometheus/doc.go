// Package prometheus exposes portal metrics through client_golang.
//
// [NewCollector] wraps a [goBlog.Portal] in a [prometheus.Collector]. Counter
// names are blogportal_*_total; the single histogram is
// blogportal_api_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry; callers register the
//     collector or mount [Collector.Handler].
//   - Mutate portal state.
package prometheus
