// Package observability provides Prometheus metrics for the filter host:
// module loads, open handles, shape negotiations, and per-buffer invocation
// counts and latencies. Metrics are registered against a caller-supplied
// registry and exposed through a standard promhttp handler.
package observability
