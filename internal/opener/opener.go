// Package opener parses file headers on a bounded pool of goroutines.
//
// Paths are taken from an eager enumerator and each is parsed by a pool
// task. Results are delivered as tasks finish, so their order differs from
// the discovery order whenever parse latencies differ. Length counts paths
// submitted, which runs ahead of the results actually available: it is a
// progress figure, not a count of ready results.
package opener

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"dicom-index/internal/enumerate"
	"dicom-index/internal/header"
	"dicom-index/internal/metrics"
)

// Result is the outcome of opening one path. Exactly one of Header, Err and
// Skipped is set.
type Result struct {
	Path   string
	Header *header.Header
	Err    error
	// Skipped means the path was known before the run and was not opened.
	Skipped bool
}

// Options configure an Opener.
type Options struct {
	// Workers bounds concurrent parses.
	Workers int
	// Skip reports paths that must not be opened. It is called from the
	// dispatch goroutine and must be safe for that.
	Skip func(path string) bool
	Log  zerolog.Logger
}

// Opener drives parses for the paths of an enumerator.
type Opener struct {
	paths  *enumerate.Eager[string]
	parser header.Parser
	opts   Options

	results   chan Result
	submitted atomic.Int64
	inFlight  atomic.Int64
	err       error // written before results is closed
}

// New creates an opener. Call Start to begin.
func New(paths *enumerate.Eager[string], parser header.Parser, opts Options) *Opener {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Opener{
		paths:   paths,
		parser:  parser,
		opts:    opts,
		results: make(chan Result, opts.Workers*2),
	}
}

// Start begins dispatching and returns the result channel, which is closed
// after the enumeration ends and every task has delivered its result.
func (o *Opener) Start(ctx context.Context) <-chan Result {
	metrics.OpenerWorkers.Set(float64(o.opts.Workers))
	go o.dispatch(ctx)
	return o.results
}

// Length returns the number of paths submitted so far.
func (o *Opener) Length() int {
	return int(o.submitted.Load())
}

// InFlight returns the number of parses currently running.
func (o *Opener) InFlight() int {
	return int(o.inFlight.Load())
}

// Err reports why enumeration stopped early. It is valid once the result
// channel is closed; nil means the enumeration completed.
func (o *Opener) Err() error {
	return o.err
}

func (o *Opener) dispatch(ctx context.Context) {
	p := pool.New().WithMaxGoroutines(o.opts.Workers)

	var err error
	for {
		var path string
		var ok bool
		path, ok, err = o.paths.Next(ctx)
		if err != nil {
			if errors.Is(err, enumerate.ErrTimedOut) {
				metrics.EnumeratorTimeouts.Inc()
			}
			o.opts.Log.Error().Err(err).Int("submitted", o.Length()).Msg("path enumeration stopped")
			break
		}
		if !ok {
			break
		}

		metrics.PathsDiscovered.Set(float64(o.paths.Length()))
		o.submitted.Add(1)
		metrics.PathsSubmitted.Set(float64(o.Length()))

		if o.opts.Skip != nil && o.opts.Skip(path) {
			if !o.send(ctx, Result{Path: path, Skipped: true}) {
				err = ctx.Err()
				break
			}
			continue
		}

		p.Go(func() {
			o.send(ctx, o.open(path))
		})
	}

	p.Wait()
	if closeErr := o.paths.Close(); closeErr != nil {
		o.opts.Log.Warn().Err(closeErr).Msg("path enumerator did not stop cleanly")
	}
	metrics.PathsDiscovered.Set(float64(o.paths.Length()))

	o.err = err
	close(o.results)
}

// open parses one file. Panics in the parser become per-file errors.
func (o *Opener) open(path string) (res Result) {
	o.inFlight.Add(1)
	metrics.OpenerInFlight.Inc()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = Result{Path: path, Err: fmt.Errorf("parse %s: panic: %v", path, r)}
		}
		metrics.ParseDuration.WithLabelValues(resultLabel(res.Err)).Observe(time.Since(start).Seconds())
		metrics.OpenerInFlight.Dec()
		o.inFlight.Add(-1)
	}()

	h, err := o.parser.Parse(path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	if h.Path == "" {
		h.Path = path
	}
	return Result{Path: path, Header: h}
}

func (o *Opener) send(ctx context.Context, r Result) bool {
	select {
	case o.results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, header.ErrNotRecognized):
		return "not_recognized"
	case errors.Is(err, header.ErrMalformed):
		return "malformed"
	default:
		return "error"
	}
}
