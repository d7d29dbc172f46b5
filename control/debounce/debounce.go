// Package debounce turns noisy button presses into single five minute adjustments.
//
// Each button is tracked separately.  A press edge starts a settling window of a fixed number of
// debounce ticks; if the button is released before the window elapses the press was a bounce
// and nothing happens.  If it is still held when the window elapses, exactly one adjustment is
// committed and the button enters a cool-down that swallows any further chatter.  Holding the
// button down does not repeat.
package debounce

import (
	"fmt"

	"github.com/jrockway/wordclock/control/timestate"
)

// Phase is the state of one button.
type Phase int

const (
	Idle Phase = iota
	Settling
	Cooldown
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Settling:
		return "settling"
	case Cooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Sample is the state of both buttons at one debounce tick; true means pressed.
type Sample struct {
	Increment, Decrement bool
}

// Asserted returns whether the button for direction d is pressed.
func (s Sample) Asserted(d timestate.Direction) bool {
	switch d {
	case timestate.Increment:
		return s.Increment
	case timestate.Decrement:
		return s.Decrement
	}
	return false
}

type button struct {
	phase     Phase
	remaining int
}

// Adjuster is the debounce state machine for the increment and decrement buttons.  It is not
// safe for concurrent use; the clock's run loop owns it.
type Adjuster struct {
	window, guard int
	inc, dec      button

	// Bounces counts presses that were released before the window elapsed.
	Bounces int
}

// New returns an Adjuster that commits after window ticks and then ignores the button for guard
// ticks.
func New(window, guard int) (*Adjuster, error) {
	if window < 1 {
		return nil, fmt.Errorf("debounce window must be at least one tick, not %d", window)
	}
	if guard < 0 {
		return nil, fmt.Errorf("cool-down guard must not be negative, not %d", guard)
	}
	return &Adjuster{window: window, guard: guard}, nil
}

func (a *Adjuster) button(d timestate.Direction) *button {
	switch d {
	case timestate.Increment:
		return &a.inc
	case timestate.Decrement:
		return &a.dec
	}
	return nil
}

// Edge records a press edge on the button for direction d.  Edges on a button that is already
// settling or cooling down are chatter and are ignored.  It returns true if the edge started a
// new settling window.
func (a *Adjuster) Edge(d timestate.Direction) bool {
	b := a.button(d)
	if b == nil || b.phase != Idle {
		return false
	}
	b.phase = Settling
	b.remaining = a.window
	return true
}

// Tick advances both buttons by one debounce tick, given the current state of the pins.  It
// returns the adjustments to commit, increment before decrement.
func (a *Adjuster) Tick(s Sample) []timestate.Direction {
	var result []timestate.Direction
	for _, d := range []timestate.Direction{timestate.Increment, timestate.Decrement} {
		if a.step(a.button(d), s.Asserted(d)) {
			result = append(result, d)
		}
	}
	return result
}

func (a *Adjuster) step(b *button, asserted bool) bool {
	switch b.phase {
	case Settling:
		if !asserted {
			a.Bounces++
			*b = button{}
			return false
		}
		b.remaining--
		if b.remaining > 0 {
			return false
		}
		b.phase = Cooldown
		b.remaining = a.guard
		if b.remaining == 0 {
			b.phase = Idle
		}
		return true
	case Cooldown:
		b.remaining--
		if b.remaining <= 0 {
			*b = button{}
		}
	}
	return false
}

// Active returns true while either button is settling or cooling down.  The debounce timer only
// needs to run while this is true.
func (a *Adjuster) Active() bool {
	return a.inc.phase != Idle || a.dec.phase != Idle
}

// Phase returns the state of the button for direction d.
func (a *Adjuster) Phase(d timestate.Direction) Phase {
	if b := a.button(d); b != nil {
		return b.phase
	}
	return Idle
}
