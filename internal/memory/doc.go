// Package memory sets the Go runtime memory limit from the container
// limit, so that the in-memory catalog index of a large archive triggers
// garbage collection before the container is killed.
//
// Environment variables:
//   - GOMEMLIMIT: standard Go variable; when set it is left alone
//   - MEMORY_LIMIT: container limit in bytes, e.g. from the Kubernetes
//     Downward API
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap (default 0.85)
package memory
