// Package clock keeps time and reacts to the buttons, redrawing the face after every change.
package clock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/jrockway/wordclock/control/debounce"
	"github.com/jrockway/wordclock/control/render"
	"github.com/jrockway/wordclock/control/timestate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/trace"
)

var (
	secondsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seconds_ticks",
		Help: "count of seconds the clock has advanced",
	})

	missedTicksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_ticks",
		Help: "count of seconds ticks that the ticker dropped because the loop was busy; the time is still advanced for them",
	})

	tickDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_delay",
		Help:    "amount of time between seconds tick and when it is handled, in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 10, 8),
	})

	adjustmentsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adjustments",
		Help: "count of committed five minute adjustments",
	}, []string{"direction"})

	bouncesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bounces",
		Help: "count of button presses released before the debounce window elapsed",
	})

	debounceTimerGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "debounce_timer_running",
		Help: "1 while the debounce timer is running",
	})
)

const (
	// DefaultDebounceInterval is the period of the debounce timer.
	DefaultDebounceInterval = 12500 * time.Microsecond
	// DefaultDebounceWindow is how many debounce ticks a button must stay pressed.
	DefaultDebounceWindow = 4
	// DefaultDebounceGuard is how many debounce ticks to ignore a button after it commits.
	DefaultDebounceGuard = 8
)

// Buttons are the time-setting inputs.
type Buttons interface {
	// Sample returns which buttons are pressed right now.
	Sample() debounce.Sample
	// Watch sends a direction to ch whenever that button is newly pressed, until the context
	// is cancelled.
	Watch(ctx context.Context, ch chan<- timestate.Direction) error
}

// Renderer shows a time on the outputs.
type Renderer interface {
	Render(t timestate.Time) (render.Result, error)
}

// Options configure a Clock.
type Options struct {
	Clock   clockwork.Clock // Defaults to the real clock.
	Start   timestate.Time  // The time shown at power on.
	Output  Renderer
	Buttons Buttons // Optional.

	DebounceInterval time.Duration // Zero uses DefaultDebounceInterval.
	DebounceWindow   int           // Zero uses DefaultDebounceWindow.
	DebounceGuard    int           // Zero means no cool-down; see DefaultDebounceGuard.
}

// Clock is the word clock: a time of day, advanced every second and adjusted by buttons.
type Clock struct {
	clock            clockwork.Clock
	time             *timestate.Keeper
	adjuster         *debounce.Adjuster
	output           Renderer
	buttons          Buttons
	debounceInterval time.Duration
	l                trace.EventLog

	// debounceTicker runs only while a button is being debounced.  Only the Run loop may
	// touch it.
	debounceTicker clockwork.Ticker
}

// New returns a Clock.
func New(opts Options) (*Clock, error) {
	if opts.Output == nil {
		return nil, errors.New("no output to render to")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.DebounceInterval == 0 {
		opts.DebounceInterval = DefaultDebounceInterval
	}
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if !opts.Start.Valid() {
		return nil, fmt.Errorf("start time %v out of range", opts.Start)
	}
	adj, err := debounce.New(opts.DebounceWindow, opts.DebounceGuard)
	if err != nil {
		return nil, fmt.Errorf("create debouncer: %w", err)
	}
	return &Clock{
		clock:            opts.Clock,
		time:             timestate.NewKeeper(opts.Start),
		adjuster:         adj,
		output:           opts.Output,
		buttons:          opts.Buttons,
		debounceInterval: opts.DebounceInterval,
		l:                trace.NewEventLog("clock", "run"),
	}, nil
}

// Now returns the time the clock is keeping.
func (c *Clock) Now() timestate.Time {
	return c.time.Now()
}

// Run runs the clock until the context is cancelled.  Every change to the time happens on this
// goroutine and is followed immediately by a render, so the seconds tick and an adjustment never
// interleave.
func (c *Clock) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	edgeCh := make(chan timestate.Direction)
	watchErrCh := make(chan error, 1)
	if c.buttons != nil {
		go func() {
			watchErrCh <- c.buttons.Watch(ctx, edgeCh)
		}()
	}

	seconds := c.clock.NewTicker(time.Second)
	defer seconds.Stop()
	defer c.stopDebounce()
	last := c.clock.Now()

	log.Printf("clock running; starting at %v", c.time.Now())
	c.render("power on", c.time.Now())
	for {
		var debounceCh <-chan time.Time
		if c.debounceTicker != nil {
			debounceCh = c.debounceTicker.Chan()
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("run clock: %w", ctx.Err())
		case err := <-watchErrCh:
			if err == nil {
				err = errors.New("watcher exited")
			}
			return fmt.Errorf("watch buttons: %w", err)
		case tick := <-seconds.Chan():
			tickDelayMetric.Observe(float64(c.clock.Since(tick).Nanoseconds()))
			n := 1
			if gap := tick.Sub(last); gap > 3*time.Second/2 {
				n = int((gap + time.Second/2) / time.Second)
				missedTicksCounter.Add(float64(n - 1))
				c.l.Errorf("%d seconds ticks missed", n-1)
			}
			last = tick
			c.handleSeconds(n)
		case d := <-edgeCh:
			c.handleEdge(d)
		case <-debounceCh:
			c.handleDebounceTick()
		}
	}
}

// handleSeconds advances the time by n seconds.
func (c *Clock) handleSeconds(n int) {
	var t timestate.Time
	for i := 0; i < n; i++ {
		t = c.time.Tick()
		secondsCounter.Inc()
	}
	c.render("tick", t)
}

// handleEdge starts debouncing a button press, starting the debounce timer if necessary.
func (c *Clock) handleEdge(d timestate.Direction) {
	if !c.adjuster.Edge(d) {
		return
	}
	c.l.Printf("%v button pressed; settling", d)
	if c.debounceTicker == nil {
		c.debounceTicker = c.clock.NewTicker(c.debounceInterval)
		debounceTimerGauge.Set(1)
	}
}

// handleDebounceTick samples the buttons, commits any adjustments that have settled, and stops
// the debounce timer once both buttons are idle again.
func (c *Clock) handleDebounceTick() {
	var s debounce.Sample
	if c.buttons != nil {
		s = c.buttons.Sample()
	}
	bounces := c.adjuster.Bounces
	for _, d := range c.adjuster.Tick(s) {
		adjustmentsCounter.WithLabelValues(d.String()).Inc()
		t := c.time.Adjust(d)
		c.l.Printf("%v committed; time is now %v", d, t)
		c.render(d.String(), t)
	}
	if n := c.adjuster.Bounces - bounces; n > 0 {
		bouncesCounter.Add(float64(n))
		c.l.Printf("%d bounces ignored", n)
	}
	if !c.adjuster.Active() {
		c.stopDebounce()
	}
}

func (c *Clock) stopDebounce() {
	if c.debounceTicker == nil {
		return
	}
	c.debounceTicker.Stop()
	c.debounceTicker = nil
	debounceTimerGauge.Set(0)
}

func (c *Clock) render(reason string, t timestate.Time) {
	res, err := c.output.Render(t)
	if err != nil {
		c.l.Errorf("render %v after %s: %v", t, reason, err)
		return
	}
	if reason != "tick" {
		c.l.Printf("%s: %v", reason, res)
	}
}
