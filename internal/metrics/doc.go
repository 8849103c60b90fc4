// Package metrics provides Prometheus instrumentation for dicom-index.
//
// All metrics are prefixed with "dicom_index_". They cover:
//   - Runs: count, duration, in-progress flag
//   - Pipeline: discovered and submitted path gauges, parse latency,
//     outcome counters, enumerator timeouts
//   - Database: query and transaction latency, catalog row gauges
//   - Filesystem: NFS stale-handle retries (via filesystem.Observer)
//
// Metrics are served on /metrics by the handlers package when the index
// command runs with --metrics-addr.
package metrics
