package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// DefaultMemoryRatio is the share of container memory given to the Go heap.
// The rest is left to SQLite's page cache and goroutine stacks.
const DefaultMemoryRatio = 0.85

// Source values of ConfigResult.
const (
	SourceGOMEMLIMIT  = "GOMEMLIMIT"
	SourceMemoryLimit = "MEMORY_LIMIT"
	SourceNone        = "none"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a limit is in effect
	Configured bool

	// Source is one of SourceGOMEMLIMIT, SourceMemoryLimit or SourceNone
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the effective Go memory limit in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets the Go memory limit from MEMORY_LIMIT unless
// GOMEMLIMIT is already set. Call it before the catalog index is seeded.
func ConfigureFromEnv(log zerolog.Logger) ConfigResult {
	result := ConfigResult{Source: SourceNone}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = SourceGOMEMLIMIT
			result.GoMemLimit = limit
		}
		log.Info().Str("GOMEMLIMIT", goMemLimitEnv).Msg("memory limit set via environment")
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		log.Debug().Msg("MEMORY_LIMIT not set, memory limit not configured")
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		log.Warn().Str("MEMORY_LIMIT", memLimitStr).Msg("ignoring invalid MEMORY_LIMIT")
		return result
	}
	result.ContainerLimit = memLimit

	result.Ratio = parseRatio(os.Getenv("MEMORY_RATIO"), log)
	goMemLimit := int64(float64(memLimit) * result.Ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = SourceMemoryLimit
	result.GoMemLimit = goMemLimit

	log.Info().
		Str("limit", humanize.IBytes(uint64(goMemLimit))).
		Str("container", humanize.IBytes(uint64(memLimit))).
		Float64("ratio", result.Ratio).
		Msg("configured memory limit")

	return result
}

func parseRatio(s string, log zerolog.Logger) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil || ratio <= 0 || ratio > 1.0 {
		log.Warn().Str("MEMORY_RATIO", s).Float64("default", DefaultMemoryRatio).Msg("MEMORY_RATIO must be in (0, 1], using default")
		return DefaultMemoryRatio
	}
	return ratio
}
