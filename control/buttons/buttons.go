// Package buttons reads the two time-setting buttons.  Both are wired between a GPIO input and
// ground, with the internal pull-up enabled, so a pressed button reads low.
package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/jrockway/wordclock/control/debounce"
	"github.com/jrockway/wordclock/control/timestate"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// pollInterval bounds how long a watcher waits for an edge before checking for cancellation.
const pollInterval = 100 * time.Millisecond

// Buttons are the increment and decrement inputs.
type Buttons struct {
	Increment, Decrement gpio.PinIn
}

// Open looks up the button pins by name and configures them.
func Open(increment, decrement string) (*Buttons, error) {
	inc := gpioreg.ByName(increment)
	if inc == nil {
		return nil, fmt.Errorf("no gpio pin named %q for the increment button", increment)
	}
	dec := gpioreg.ByName(decrement)
	if dec == nil {
		return nil, fmt.Errorf("no gpio pin named %q for the decrement button", decrement)
	}
	return New(inc, dec)
}

// New configures already-open pins as pulled-up inputs that report falling edges.
func New(increment, decrement gpio.PinIn) (*Buttons, error) {
	for _, p := range []gpio.PinIn{increment, decrement} {
		if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("configure %s as input: %w", p, err)
		}
	}
	return &Buttons{Increment: increment, Decrement: decrement}, nil
}

func pressed(p gpio.PinIn) bool {
	return p != nil && p.Read() == gpio.Low
}

// Sample implements clock.Buttons.
func (b *Buttons) Sample() debounce.Sample {
	return debounce.Sample{
		Increment: pressed(b.Increment),
		Decrement: pressed(b.Decrement),
	}
}

// Watch sends a button's direction to ch each time it sees an edge after which the button reads
// pressed.  It returns when the context is cancelled.
func (b *Buttons) Watch(ctx context.Context, ch chan<- timestate.Direction) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return watch(ctx, b.Increment, timestate.Increment, ch) })
	eg.Go(func() error { return watch(ctx, b.Decrement, timestate.Decrement, ch) })
	return eg.Wait()
}

func watch(ctx context.Context, p gpio.PinIn, d timestate.Direction, ch chan<- timestate.Direction) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("watch %v button: %w", d, err)
		}
		if !p.WaitForEdge(pollInterval) || !pressed(p) {
			continue
		}
		select {
		case ch <- d:
		case <-ctx.Done():
			return fmt.Errorf("send %v edge: %w", d, ctx.Err())
		}
	}
}
