package workers

import (
	"runtime"
)

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for local I/O-bound tasks
//   - 4.0 for I/O on network filesystems, where latency dominates
//
// A positive override replaces the computed value. The limit parameter caps
// the result in both cases; use 0 for no limit.
func Count(multiplier float64, limit, override int) int {
	if override > 0 {
		if limit > 0 && override > limit {
			return limit
		}
		return override
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit, override int) int {
	return Count(1.0, limit, override)
}

// ForIO returns worker count for local I/O-bound tasks (2 per CPU).
func ForIO(limit, override int) int {
	return Count(2.0, limit, override)
}

// ForNetworkIO returns worker count for file opens on slow or remote
// filesystems (4 per CPU). Parsing a header is cheap; waiting for the
// first bytes of a file on NFS is not.
func ForNetworkIO(limit, override int) int {
	return Count(4.0, limit, override)
}
