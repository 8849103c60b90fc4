package enumerate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](t *testing.T, e *Eager[T]) ([]T, error) {
	t.Helper()
	var out []T
	for {
		it, ok, err := e.Next(context.Background())
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, it)
	}
}

func TestYieldsInProducerOrder(t *testing.T) {
	items := []int{5, 3, 9, 1, 7}
	e := New(FromSlice(items), Options{QueueSize: 2})
	defer e.Close()

	got, err := drain(t, e)
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.Equal(t, len(items), e.Length())
	assert.Eventually(t, e.Finished, time.Second, time.Millisecond)

	// Exhausted enumerators keep reporting the end.
	_, ok, err := e.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestLazyStart(t *testing.T) {
	var started atomic.Bool
	e := New(func(ctx context.Context, emit func(int) error) error {
		started.Store(true)
		return emit(1)
	}, Options{})
	defer e.Close()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, started.Load())
	assert.Equal(t, 0, e.Length())

	it, ok, err := e.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, it)
	assert.True(t, started.Load())
}

func TestLengthGrowsBeforeConsumption(t *testing.T) {
	release := make(chan struct{})
	e := New(func(ctx context.Context, emit func(int) error) error {
		for i := 0; i < 10; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
		<-release
		return nil
	}, Options{})
	defer e.Close()

	e.Start()
	assert.Eventually(t, func() bool { return e.Length() == 10 }, time.Second, time.Millisecond)
	assert.False(t, e.Finished())

	close(release)
	got, err := drain(t, e)
	require.NoError(t, err)
	assert.Len(t, got, 10)
	assert.Equal(t, 10, e.Length())
}

func TestProducerErrorAfterQueuedItems(t *testing.T) {
	boom := errors.New("disk on fire")
	e := New(func(ctx context.Context, emit func(string) error) error {
		if err := emit("a"); err != nil {
			return err
		}
		if err := emit("b"); err != nil {
			return err
		}
		return boom
	}, Options{})
	defer e.Close()

	got, err := drain(t, e)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.ErrorIs(t, err, ErrProducer)
	assert.ErrorIs(t, err, boom)
}

func TestProducerPanicIsFailure(t *testing.T) {
	e := New(func(ctx context.Context, emit func(int) error) error {
		_ = emit(1)
		panic("walker bug")
	}, Options{})
	defer e.Close()

	got, err := drain(t, e)
	assert.Equal(t, []int{1}, got)
	assert.ErrorIs(t, err, ErrProducer)
	assert.ErrorContains(t, err, "walker bug")
}

func TestNextTimesOut(t *testing.T) {
	unblock := make(chan struct{})
	e := New(func(ctx context.Context, emit func(int) error) error {
		select {
		case <-unblock:
		case <-ctx.Done():
		}
		return emit(42)
	}, Options{Timeout: 20 * time.Millisecond})
	defer e.Close()

	_, ok, err := e.Next(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTimedOut)

	// Still usable after a timeout.
	close(unblock)
	it, ok, err := e.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, it)
}

func TestNextHonoursContext(t *testing.T) {
	e := New(func(ctx context.Context, emit func(int) error) error {
		<-ctx.Done()
		return ctx.Err()
	}, Options{})
	defer e.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseStopsBlockedProducer(t *testing.T) {
	e := New(func(ctx context.Context, emit func(int) error) error {
		for i := 0; ; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
	}, Options{QueueSize: 1})

	_, ok, err := e.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.Close())
	assert.True(t, e.Finished())
	require.NoError(t, e.Close())
}

func TestCloseBeforeStart(t *testing.T) {
	var started atomic.Bool
	e := New(func(ctx context.Context, emit func(int) error) error {
		started.Store(true)
		return nil
	}, Options{})

	require.NoError(t, e.Close())
	_, ok, err := e.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
	assert.False(t, started.Load())
}

func TestCloseReportsWedgedProducer(t *testing.T) {
	wedge := make(chan struct{})
	defer close(wedge)

	e := New(func(ctx context.Context, emit func(int) error) error {
		<-wedge // ignores ctx, like a hung filesystem call
		return nil
	}, Options{ShutdownTimeout: 20 * time.Millisecond})
	e.Start()

	assert.ErrorIs(t, e.Close(), ErrShutdownTimeout)
}

func TestCancelledProducerIsNotAFailure(t *testing.T) {
	e := New(func(ctx context.Context, emit func(int) error) error {
		<-ctx.Done()
		return errors.New("interrupted")
	}, Options{})
	e.Start()
	require.NoError(t, e.Close())

	_, ok, err := e.Next(context.Background())
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestLengthNeverDropsOnClose(t *testing.T) {
	e := New(func(ctx context.Context, emit func(int) error) error {
		for i := 0; ; i++ {
			if err := emit(i); err != nil {
				return err
			}
		}
	}, Options{QueueSize: 1})

	_, ok, err := e.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// One item consumed and one queued; the third emit is blocked and must
	// not be counted.
	assert.Eventually(t, func() bool { return e.Length() == 2 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return e.Length() != 2 }, 20*time.Millisecond, time.Millisecond)

	require.NoError(t, e.Close())
	assert.Equal(t, 2, e.Length())
}
