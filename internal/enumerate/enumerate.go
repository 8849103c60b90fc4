// Package enumerate runs a producer ahead of its consumer.
//
// An Eager enumerator starts its producer in a separate goroutine on the
// first call to Next and buffers what it emits in a bounded queue. The
// consumer reads items in production order, while Length reports how many
// items the producer has emitted so far. That count grows while enumeration
// is still running, which is what progress reporting needs for trees too
// large to list up front.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrTimedOut is returned by Next when neither an item nor the end of
	// the sequence arrived within the configured wait.
	ErrTimedOut = errors.New("enumerator timed out waiting for producer")

	// ErrProducer wraps a failure of the producer itself.
	ErrProducer = errors.New("producer failed")

	// ErrShutdownTimeout is returned by Close when the producer goroutine
	// did not exit within the shutdown timeout.
	ErrShutdownTimeout = errors.New("producer did not stop within shutdown timeout")
)

// Defaults for Options fields left at zero.
const (
	DefaultQueueSize       = 65536
	DefaultTimeout         = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Producer emits a finite sequence of items. It must stop when ctx is done
// or emit returns an error, and return that error.
type Producer[T any] func(ctx context.Context, emit func(T) error) error

// Options configure an Eager enumerator.
type Options struct {
	// QueueSize bounds the items buffered ahead of the consumer.
	QueueSize int
	// Timeout bounds each wait in Next.
	Timeout time.Duration
	// ShutdownTimeout bounds the wait for the producer in Close.
	ShutdownTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	return o
}

// Eager is a producer running ahead of its consumer. Next must be called
// from one goroutine; Length and Finished may be called from any.
type Eager[T any] struct {
	produce Producer[T]
	opts    Options

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	queue chan T
	done  chan struct{}
	err   error // written before queue is closed

	count    atomic.Int64
	finished atomic.Bool
}

// New wraps produce. The producer does not run until the first Next.
func New[T any](produce Producer[T], opts Options) *Eager[T] {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Eager[T]{
		produce: produce,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan T, opts.QueueSize),
		done:    make(chan struct{}),
	}
}

// FromSlice returns a producer emitting items in order.
func FromSlice[T any](items []T) Producer[T] {
	return func(ctx context.Context, emit func(T) error) error {
		for _, it := range items {
			if err := emit(it); err != nil {
				return err
			}
		}
		return nil
	}
}

// Start launches the producer if it is not running yet.
func (e *Eager[T]) Start() {
	e.startOnce.Do(func() {
		go e.run()
	})
}

func (e *Eager[T]) run() {
	defer close(e.done)
	defer e.finished.Store(true)
	defer close(e.queue)

	defer func() {
		if r := recover(); r != nil {
			e.err = fmt.Errorf("%w: panic: %v", ErrProducer, r)
		}
	}()

	err := e.produce(e.ctx, e.emit)
	if err != nil && e.ctx.Err() == nil {
		e.err = fmt.Errorf("%w: %w", ErrProducer, err)
	}
}

// emit counts the item once it is queued, so an item dropped by Close is
// never counted and Length never drops.
func (e *Eager[T]) emit(item T) error {
	select {
	case e.queue <- item:
		e.count.Add(1)
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// Next returns the next item. ok is false once the producer has finished
// and every item was consumed. A producer failure is returned, wrapped in
// ErrProducer, after the items emitted before it. ErrTimedOut means the
// producer went quiet for longer than the configured timeout; the
// enumerator remains usable.
func (e *Eager[T]) Next(ctx context.Context) (item T, ok bool, err error) {
	e.Start()

	timer := time.NewTimer(e.opts.Timeout)
	defer timer.Stop()

	select {
	case it, open := <-e.queue:
		if open {
			return it, true, nil
		}
		return item, false, e.err
	case <-timer.C:
		return item, false, ErrTimedOut
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// Length returns the number of items emitted so far. It never blocks, and is
// final once Finished reports true.
func (e *Eager[T]) Length() int {
	return int(e.count.Load())
}

// Finished reports whether the producer has returned.
func (e *Eager[T]) Finished() bool {
	return e.finished.Load()
}

// Close stops the producer and waits for its goroutine to exit, up to the
// shutdown timeout. Close is safe to call more than once.
func (e *Eager[T]) Close() error {
	e.cancel()
	// Claim the start so that a later Next cannot launch the producer.
	e.startOnce.Do(func() { close(e.queue); close(e.done); e.finished.Store(true) })

	timer := time.NewTimer(e.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-e.done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}
