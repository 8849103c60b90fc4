// Package stats keeps the ledger of per-path outcomes of an indexing run.
package stats

import (
	"fmt"
	"sync"
)

// Outcome is the classification of one visited path.
type Outcome int

const (
	Processed Outcome = iota
	ProcessedDuplicate
	SkippedNonContainer
	SkippedFailed
	SkippedAlreadyVisited
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{Processed, ProcessedDuplicate, SkippedNonContainer, SkippedFailed, SkippedAlreadyVisited}

var outcomeNames = [...]string{"processed", "processed_duplicate", "skipped_non_container", "skipped_failed", "skipped_already_visited"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Entry is one ledger record.
type Entry struct {
	Path    string
	Outcome Outcome
}

// Ledger is an append-only list of entries. One goroutine appends; any
// goroutine may read.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	counts  [len(outcomeNames)]int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Add appends an entry.
func (l *Ledger) Add(path string, outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Path: path, Outcome: outcome})
	if int(outcome) >= 0 && int(outcome) < len(l.counts) {
		l.counts[outcome]++
	}
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a copy of the ledger in arrival order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Summary is the per-outcome breakdown of a ledger.
type Summary struct {
	Processed             int `json:"processed"`
	ProcessedDuplicate    int `json:"processedDuplicate"`
	SkippedNonContainer   int `json:"skippedNonContainer"`
	SkippedFailed         int `json:"skippedFailed"`
	SkippedAlreadyVisited int `json:"skippedAlreadyVisited"`
	Total                 int `json:"total"`
}

// Summary returns current counts. It is safe to call mid-run.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Summary{
		Processed:             l.counts[Processed],
		ProcessedDuplicate:    l.counts[ProcessedDuplicate],
		SkippedNonContainer:   l.counts[SkippedNonContainer],
		SkippedFailed:         l.counts[SkippedFailed],
		SkippedAlreadyVisited: l.counts[SkippedAlreadyVisited],
		Total:                 len(l.entries),
	}
}

// Count returns the number of entries with outcome o.
func (s Summary) Count(o Outcome) int {
	switch o {
	case Processed:
		return s.Processed
	case ProcessedDuplicate:
		return s.ProcessedDuplicate
	case SkippedNonContainer:
		return s.SkippedNonContainer
	case SkippedFailed:
		return s.SkippedFailed
	case SkippedAlreadyVisited:
		return s.SkippedAlreadyVisited
	}
	return 0
}

// Skipped is the number of paths that added nothing to the catalog.
func (s Summary) Skipped() int {
	return s.SkippedNonContainer + s.SkippedFailed + s.SkippedAlreadyVisited
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"Visited %d, processed %d (duplicates %d), skipped %d (already visited/non-container/failed: %d/%d/%d)",
		s.Total, s.Processed+s.ProcessedDuplicate, s.ProcessedDuplicate,
		s.Skipped(), s.SkippedAlreadyVisited, s.SkippedNonContainer, s.SkippedFailed,
	)
}
