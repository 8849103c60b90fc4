package workers

import (
	"runtime"
	"testing"
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "Network I/O task (4.0x multiplier)",
			multiplier: 4.0,
			minExpect:  1,
			maxExpect:  availableCPU * 4,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier",
			multiplier: 0.1,
			minExpect:  1,
			maxExpect:  maxInt(1, int(float64(availableCPU)*0.1)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit, 0)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d, 0) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d, 0) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountWithOverride(t *testing.T) {
	tests := []struct {
		name     string
		override int
		limit    int
		expected int
	}{
		{name: "Valid override", override: 8, expected: 8},
		{name: "Override with limit", override: 20, limit: 10, expected: 10},
		{name: "Override below limit", override: 5, limit: 10, expected: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(1.0, tt.limit, tt.override); got != tt.expected {
				t.Errorf("Count(1.0, %d, %d) = %d, want %d", tt.limit, tt.override, got, tt.expected)
			}
		})
	}
}

func TestCountIgnoresNonPositiveOverride(t *testing.T) {
	for _, override := range []int{0, -5} {
		want := Count(1.0, 0, 0)
		if got := Count(1.0, 0, override); got != want {
			t.Errorf("Count with override %d = %d, want computed %d", override, got, want)
		}
	}
}

func TestHelpersOrdering(t *testing.T) {
	cpu := ForCPU(0, 0)
	io := ForIO(0, 0)
	network := ForNetworkIO(0, 0)

	if cpu > io {
		t.Errorf("ForCPU (%d) should not exceed ForIO (%d)", cpu, io)
	}
	if io > network {
		t.Errorf("ForIO (%d) should not exceed ForNetworkIO (%d)", io, network)
	}
}

func TestHelpersRespectLimit(t *testing.T) {
	if got := ForNetworkIO(1, 0); got != 1 {
		t.Errorf("ForNetworkIO(1, 0) = %d, want 1", got)
	}
	if got := ForIO(3, 7); got != 3 {
		t.Errorf("ForIO(3, 7) = %d, want 3", got)
	}
}
