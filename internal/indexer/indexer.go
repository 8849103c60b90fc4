package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"dicom-index/internal/catalog"
	"dicom-index/internal/database"
	"dicom-index/internal/discovery"
	"dicom-index/internal/enumerate"
	"dicom-index/internal/header"
	"dicom-index/internal/metrics"
	"dicom-index/internal/opener"
	"dicom-index/internal/stats"
)

var (
	// ErrStorageTransaction means storage rejected the rows of one file.
	// The transaction was rolled back and the file counted as failed.
	ErrStorageTransaction = errors.New("storage transaction failed")

	// ErrAlreadyRunning is returned by Run while another run is active.
	ErrAlreadyRunning = errors.New("index run already in progress")
)

// Catalog is the persistent storage the indexer seeds from and writes to.
// *database.Database implements it.
type Catalog interface {
	SeedIdentifiers(ctx context.Context) (database.Identifiers, error)
	SeedPathStatuses(ctx context.Context) (map[string]database.PathStatus, error)

	BeginBatch() (*sql.Tx, error)
	EndBatch(tx *sql.Tx, err error) error
	UpsertRows(tx *sql.Tx, rows database.Rows) error
	InsertDuplicate(tx *sql.Tx, dup database.DuplicateInstance) error
	InsertNonContainer(tx *sql.Tx, path string) error
	InsertFailed(tx *sql.Tx, f database.FailedFile) error

	StartRun(ctx context.Context, root, strategy string) (database.Run, error)
	FinishRun(ctx context.Context, run database.Run) error
}

// Config configures an Indexer.
type Config struct {
	Root       string
	Strategy   discovery.Strategy
	Parser     header.Parser
	Workers    int
	Enumerator enumerate.Options
	Log        zerolog.Logger
}

// Indexer catalogues the files below one archive root. Each Run seeds an
// in-memory index from storage, streams discovered paths through the file
// opener, and classifies every result on the calling goroutine, which is
// the only one touching the index and the storage transactions.
type Indexer struct {
	store Catalog
	cfg   Config
	log   zerolog.Logger

	running atomic.Bool
	current atomic.Pointer[runState]
	last    atomic.Pointer[Report]

	// index is owned by the goroutine inside Run.
	index  *catalog.Index
	ledger atomic.Pointer[stats.Ledger]
}

// runState exposes the live counters of the active run to Progress.
type runState struct {
	runID     string
	startedAt time.Time
	paths     *enumerate.Eager[string]
	opener    *opener.Opener
	ledger    *stats.Ledger
}

// Progress is a point-in-time view of a run, safe to take from any
// goroutine.
type Progress struct {
	Running           bool          `json:"running"`
	RunID             string        `json:"runId,omitempty"`
	StartedAt         time.Time     `json:"startedAt,omitempty"`
	Discovered        int           `json:"discovered"`
	DiscoveryFinished bool          `json:"discoveryFinished"`
	Submitted         int           `json:"submitted"`
	InFlight          int           `json:"inFlight"`
	Processed         int           `json:"processed"`
	Summary           stats.Summary `json:"summary"`
}

// Report describes a finished run.
type Report struct {
	Run      database.Run
	Summary  stats.Summary
	Duration time.Duration
}

// New creates an indexer writing to store.
func New(store Catalog, cfg Config) *Indexer {
	return &Indexer{
		store: store,
		cfg:   cfg,
		log:   cfg.Log,
	}
}

// Run indexes the archive once. Per-file problems are recorded and never end
// the run; the returned error reports failures to seed from storage and
// enumeration failures. The report is valid whenever the run was started,
// including when an error is returned.
func (idx *Indexer) Run(ctx context.Context) (Report, error) {
	if !idx.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer idx.running.Store(false)

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()

	index, err := idx.seed(ctx)
	if err != nil {
		metrics.IndexerErrors.WithLabelValues("storage_transaction").Inc()
		return Report{}, err
	}
	idx.index = index
	ledger := stats.New()
	idx.ledger.Store(ledger)

	run, err := idx.store.StartRun(ctx, idx.cfg.Root, idx.cfg.Strategy.Name())
	if err != nil {
		return Report{}, fmt.Errorf("start run: %w", err)
	}

	log := idx.log.With().Str("run", run.ID).Logger()
	log.Info().
		Str("root", idx.cfg.Root).
		Str("strategy", idx.cfg.Strategy.Name()).
		Int("workers", idx.cfg.Workers).
		Int("known_paths", index.Counts().Paths).
		Msg("starting index run")

	paths := enumerate.New(idx.produce, idx.cfg.Enumerator)
	known := index.KnownPaths()
	op := opener.New(paths, idx.cfg.Parser, opener.Options{
		Workers: idx.cfg.Workers,
		Skip:    known.Contains,
		Log:     log,
	})

	idx.current.Store(&runState{
		runID:     run.ID,
		startedAt: startTime,
		paths:     paths,
		opener:    op,
		ledger:    ledger,
	})
	defer idx.current.Store(nil)

	for res := range op.Start(ctx) {
		outcome := idx.process(log, res)
		ledger.Add(res.Path, outcome)
		metrics.IndexerOutcomes.WithLabelValues(outcome.String()).Inc()
	}

	summary := ledger.Summary()
	runErr := op.Err()
	if runErr == nil {
		runErr = ctx.Err()
	}

	run.Status = database.RunCompleted
	if runErr != nil {
		run.Status = database.RunFailed
		run.Error = runErr.Error()
		metrics.IndexerErrors.WithLabelValues("enumeration").Inc()
	}
	run.Counts = database.RunCounts{
		Processed:      summary.Processed,
		Duplicates:     summary.ProcessedDuplicate,
		NonContainer:   summary.SkippedNonContainer,
		Failed:         summary.SkippedFailed,
		AlreadyVisited: summary.SkippedAlreadyVisited,
	}
	run.FinishedAt = time.Now().UTC()
	if err := idx.store.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Msg("failed to record run result")
	}

	duration := time.Since(startTime)
	metrics.IndexerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.IndexerLastRunDuration.Set(duration.Seconds())

	report := Report{Run: run, Summary: summary, Duration: duration}
	idx.last.Store(&report)

	if runErr != nil {
		log.Error().Err(runErr).Str("summary", summary.String()).Msg("index run stopped early")
		return report, fmt.Errorf("index run: %w", runErr)
	}
	log.Info().Str("summary", summary.String()).Dur("duration", duration).Msg("index run complete")
	return report, nil
}

func (idx *Indexer) seed(ctx context.Context) (*catalog.Index, error) {
	ids, err := idx.store.SeedIdentifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed identifiers: %w", err)
	}
	statuses, err := idx.store.SeedPathStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed path statuses: %w", err)
	}

	index := catalog.New()
	index.Seed(ids, statuses)

	c := index.Counts()
	idx.log.Debug().
		Int("patients", c.Patients).
		Int("studies", c.Studies).
		Int("series", c.Series).
		Int("instances", c.Instances).
		Int("paths", c.Paths).
		Msg("seeded catalog index")
	return index, nil
}

func (idx *Indexer) produce(ctx context.Context, emit func(string) error) error {
	return idx.cfg.Strategy.Discover(ctx, idx.cfg.Root, emit)
}

// Progress returns the state of the active run, or of the last finished run
// when none is active.
func (idx *Indexer) Progress() Progress {
	if rs := idx.current.Load(); rs != nil {
		summary := rs.ledger.Summary()
		return Progress{
			Running:           true,
			RunID:             rs.runID,
			StartedAt:         rs.startedAt,
			Discovered:        rs.paths.Length(),
			DiscoveryFinished: rs.paths.Finished(),
			Submitted:         rs.opener.Length(),
			InFlight:          rs.opener.InFlight(),
			Processed:         summary.Total,
			Summary:           summary,
		}
	}
	if r := idx.last.Load(); r != nil {
		return Progress{
			RunID:             r.Run.ID,
			StartedAt:         r.Run.StartedAt,
			Discovered:        r.Summary.Total,
			DiscoveryFinished: true,
			Submitted:         r.Summary.Total,
			Processed:         r.Summary.Total,
			Summary:           r.Summary,
		}
	}
	return Progress{}
}

// IsRunning reports whether a run is active.
func (idx *Indexer) IsRunning() bool {
	return idx.running.Load()
}

// Entries returns the ledger of the current or last run.
func (idx *Indexer) Entries() []stats.Entry {
	l := idx.ledger.Load()
	if l == nil {
		return nil
	}
	return l.Entries()
}
