// Package timestate keeps the time shown on the word clock.
package timestate

import (
	"fmt"
	"sync"
)

// Time is a 12-hour wall clock time.  The zero value is 00:00:00, which is what the clock shows
// when it powers on.
type Time struct {
	Hours   uint8 // [0, 12)
	Minutes uint8 // [0, 60)
	Seconds uint8 // [0, 60)
}

func (t Time) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds)
}

// Valid returns true if every field is in range.
func (t Time) Valid() bool {
	return t.Hours < 12 && t.Minutes < 60 && t.Seconds < 60
}

// Direction is the way a button moves the time.
type Direction int

const (
	None Direction = iota
	Increment
	Decrement
)

func (d Direction) String() string {
	switch d {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	default:
		return "none"
	}
}

// RoundToNearest rounds x to the nearest integer multiple of step.  A remainder of exactly half a
// step rounds down when step is even.
func RoundToNearest(x, step uint) uint {
	var up uint
	if x%step > step/2 {
		up = 1
	}
	return (x/step + up) * step
}

// AdvanceOneSecond returns t one second later.
func AdvanceOneSecond(t Time) Time {
	t.Seconds = (t.Seconds + 1) % 60
	if t.Seconds == 0 {
		t.Minutes = (t.Minutes + 1) % 60
		if t.Minutes == 0 {
			t.Hours = (t.Hours + 1) % 12
		}
	}
	return t
}

// AdjustFiveMinutes moves t to the next or previous five minute boundary and zeroes the seconds.
// Directions other than Increment and Decrement return t unchanged.
func AdjustFiveMinutes(t Time, d Direction) Time {
	switch d {
	case Increment:
		m := RoundToNearest(uint(t.Minutes)+5, 5)
		t.Seconds = 0
		t.Minutes = uint8(m % 60)
		// Carry on reaching 60, not on a result below 5: 58 and 59 round to 65.
		if m >= 60 {
			t.Hours = (t.Hours + 1) % 12
		}
	case Decrement:
		wrapped := t.Minutes < 5
		if wrapped {
			t.Minutes += 55
			if t.Hours == 0 {
				t.Hours = 11
			} else {
				t.Hours--
			}
		} else {
			t.Minutes -= 5
		}
		t.Seconds = 0
		t.Minutes = uint8(RoundToNearest(uint(t.Minutes), 5))
		// 58 and 59 round up to the top of the hour we just left.
		if t.Minutes == 60 {
			t.Minutes = 0
			t.Hours = (t.Hours + 1) % 12
		}
	}
	return t
}

// Keeper owns the clock's one copy of the time.  All changes go through Tick and Adjust, each of
// which completes its read-modify-write before any other caller can observe the time.
type Keeper struct {
	mu sync.Mutex
	t  Time // must hold mu to read or write.
}

// NewKeeper returns a Keeper starting at t.
func NewKeeper(t Time) *Keeper {
	return &Keeper{t: t}
}

// Tick advances the time by one second and returns the new time.
func (k *Keeper) Tick() Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.t = AdvanceOneSecond(k.t)
	return k.t
}

// Adjust moves the time by five minutes in direction d and returns the new time.
func (k *Keeper) Adjust(d Direction) Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.t = AdjustFiveMinutes(k.t, d)
	return k.t
}

// Now returns the current time.
func (k *Keeper) Now() Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.t
}
