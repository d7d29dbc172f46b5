package clock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jrockway/wordclock/control/debounce"
	"github.com/jrockway/wordclock/control/phrase"
	"github.com/jrockway/wordclock/control/render"
	"github.com/jrockway/wordclock/control/timestate"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// recorder renders to nothing and remembers what it rendered.
type recorder struct {
	p  render.Pipeline
	ch chan render.Result
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan render.Result, 100)}
}

func (r *recorder) Render(t timestate.Time) (render.Result, error) {
	res, err := r.p.Render(t)
	r.ch <- res
	return res, err
}

func (r *recorder) next(t *testing.T) render.Result {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for render")
	}
	return render.Result{}
}

func (r *recorder) requireNone(t *testing.T) {
	t.Helper()
	select {
	case res := <-r.ch:
		t.Fatalf("unexpected render: %v", res)
	default:
	}
}

// fakeButtons are buttons that the test presses.  Every call to Sample is reported on sampled, so
// the test can tell when a debounce tick has been handled.
type fakeButtons struct {
	mu      sync.Mutex
	s       debounce.Sample
	edges   chan timestate.Direction
	sampled chan struct{}
}

func newFakeButtons() *fakeButtons {
	return &fakeButtons{
		edges:   make(chan timestate.Direction),
		sampled: make(chan struct{}, 100),
	}
}

func (b *fakeButtons) set(s debounce.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.s = s
}

func (b *fakeButtons) Sample() debounce.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sampled <- struct{}{}
	return b.s
}

func (b *fakeButtons) Watch(ctx context.Context, ch chan<- timestate.Direction) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-b.edges:
			select {
			case ch <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// fakeClock is the part of clockwork's fake clock that the tests drive.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

func newTestClock(t *testing.T, start timestate.Time) (*Clock, *recorder, *fakeButtons, fakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	btn := newFakeButtons()
	c, err := New(Options{Clock: fc, Start: start, Output: rec, Buttons: btn, DebounceGuard: DefaultDebounceGuard})
	require.NoError(t, err, "new clock")
	return c, rec, btn, fc
}

func TestNew(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err, "no output")

	_, err = New(Options{Output: newRecorder(), Start: timestate.Time{Hours: 12}})
	require.Error(t, err, "invalid start time")

	_, err = New(Options{Output: newRecorder(), DebounceWindow: -1})
	require.Error(t, err, "negative debounce window")

	c, err := New(Options{Output: newRecorder()})
	require.NoError(t, err)
	require.Equal(t, DefaultDebounceInterval, c.debounceInterval)

	_, err = New(Options{Output: newRecorder(), DebounceGuard: -1})
	require.Error(t, err, "negative debounce guard")
}

func TestNoDebounceGuard(t *testing.T) {
	rec := newRecorder()
	btn := newFakeButtons()
	c, err := New(Options{Clock: clockwork.NewFakeClock(), Output: rec, Buttons: btn, DebounceWindow: 1})
	require.NoError(t, err)

	btn.set(debounce.Sample{Increment: true})
	c.handleEdge(timestate.Increment)
	require.NotNil(t, c.debounceTicker, "debounce timer not started by press")
	c.handleDebounceTick()
	require.Equal(t, timestate.Time{Minutes: 5}, rec.next(t).Time)
	require.Nil(t, c.debounceTicker, "debounce timer still running after commit with no cool-down")

	// With no cool-down, the next press is debounced straight away.
	c.handleEdge(timestate.Increment)
	c.handleDebounceTick()
	require.Equal(t, timestate.Time{Minutes: 10}, rec.next(t).Time)
}

func TestHandleSeconds(t *testing.T) {
	c, rec, _, _ := newTestClock(t, timestate.Time{Hours: 11, Minutes: 59, Seconds: 58})
	before := testutil.ToFloat64(secondsCounter)

	c.handleSeconds(1)
	require.Equal(t, timestate.Time{Hours: 11, Minutes: 59, Seconds: 59}, rec.next(t).Time)

	c.handleSeconds(3)
	res := rec.next(t)
	require.Equal(t, timestate.Time{Seconds: 2}, res.Time)
	require.Equal(t, phrase.OClock, res.Flags)
	require.Equal(t, uint8(0), res.Hour)
	rec.requireNone(t)

	require.Equal(t, 4.0, testutil.ToFloat64(secondsCounter)-before)
}

func TestDebounceTimerLifecycle(t *testing.T) {
	c, rec, btn, _ := newTestClock(t, timestate.Time{Hours: 5, Minutes: 7, Seconds: 12})
	require.Nil(t, c.debounceTicker, "debounce timer running before any press")

	// A bounce: pressed for one tick, then released.
	btn.set(debounce.Sample{Decrement: true})
	c.handleEdge(timestate.Decrement)
	require.NotNil(t, c.debounceTicker, "debounce timer not started by press")
	c.handleDebounceTick()
	btn.set(debounce.Sample{})
	c.handleDebounceTick()
	require.Nil(t, c.debounceTicker, "debounce timer still running after bounce")
	rec.requireNone(t)

	// A real press.
	btn.set(debounce.Sample{Decrement: true})
	c.handleEdge(timestate.Decrement)
	for i := 0; i < DefaultDebounceWindow; i++ {
		c.handleDebounceTick()
	}
	require.Equal(t, timestate.Time{Hours: 5, Minutes: 0}, rec.next(t).Time)
	require.NotNil(t, c.debounceTicker, "debounce timer stopped during cool-down")

	// Chatter and holding the button during cool-down do nothing.
	c.handleEdge(timestate.Decrement)
	for i := 0; i < DefaultDebounceGuard; i++ {
		c.handleDebounceTick()
	}
	require.Nil(t, c.debounceTicker, "debounce timer still running after cool-down")
	rec.requireNone(t)
	require.Equal(t, timestate.Time{Hours: 5}, c.Now())
}

func TestBothButtons(t *testing.T) {
	c, rec, btn, _ := newTestClock(t, timestate.Time{Hours: 3, Minutes: 20, Seconds: 40})
	before := testutil.ToFloat64(adjustmentsCounter.WithLabelValues("increment"))

	btn.set(debounce.Sample{Increment: true, Decrement: true})
	c.handleEdge(timestate.Decrement)
	c.handleEdge(timestate.Increment)
	for i := 0; i < DefaultDebounceWindow; i++ {
		c.handleDebounceTick()
	}

	// Increment is applied and rendered first, then decrement.
	require.Equal(t, timestate.Time{Hours: 3, Minutes: 25}, rec.next(t).Time)
	require.Equal(t, timestate.Time{Hours: 3, Minutes: 20}, rec.next(t).Time)
	rec.requireNone(t)
	require.Equal(t, 1.0, testutil.ToFloat64(adjustmentsCounter.WithLabelValues("increment"))-before)
}

func TestRun(t *testing.T) {
	c, rec, btn, fc := newTestClock(t, timestate.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Run(ctx)
	}()

	// The time is shown at power on, and then every second.
	require.Equal(t, timestate.Time{}, rec.next(t).Time, "power on")
	fc.Advance(time.Second)
	require.Equal(t, timestate.Time{Seconds: 1}, rec.next(t).Time, "first second")

	tick := func() {
		t.Helper()
		fc.Advance(DefaultDebounceInterval)
		select {
		case <-btn.sampled:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for debounce tick")
		}
	}
	waitForTimers := func(n int) {
		t.Helper()
		wctx, wc := context.WithTimeout(ctx, time.Second)
		defer wc()
		require.NoError(t, fc.BlockUntilContext(wctx, n), "waiting for %d timers", n)
	}

	// Press and hold increment.
	btn.set(debounce.Sample{Increment: true})
	btn.edges <- timestate.Increment
	waitForTimers(2)
	for i := 0; i < DefaultDebounceWindow; i++ {
		tick()
	}
	require.Equal(t, timestate.Time{Minutes: 5}, rec.next(t).Time, "after increment")

	// Release; the debounce timer stops after the cool-down.
	btn.set(debounce.Sample{})
	for i := 0; i < DefaultDebounceGuard; i++ {
		tick()
	}
	waitForTimers(1)
	rec.requireNone(t)

	// A bounce on decrement.
	btn.set(debounce.Sample{Decrement: true})
	btn.edges <- timestate.Decrement
	waitForTimers(2)
	tick()
	btn.set(debounce.Sample{})
	tick()
	waitForTimers(1)
	rec.requireNone(t)

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error after cancel: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for cancel")
	}
}
