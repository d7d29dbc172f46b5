// Package indicators drives the lamps behind each word of the face over GPIO.
package indicators

import (
	"errors"
	"fmt"

	"github.com/jrockway/wordclock/control/phrase"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Pins are the GPIO outputs of the face.  The hour index is written in binary on the four hour
// pins, least significant bit first, to a decoder that lights the hour word.  Each minute word
// has its own pin, in flag bit order (zehn, fünf, vor, nach, halb, drei, viertel, uhr).  Unwired
// pins may be nil.
type Pins struct {
	Hour   [4]gpio.PinOut
	Phrase [8]gpio.PinOut
}

// Open looks up pins by name.  Empty names are left unwired.
func Open(hour [4]string, words [8]string) (*Pins, error) {
	p := new(Pins)
	for i, name := range hour {
		pin, err := byName(name)
		if err != nil {
			return nil, fmt.Errorf("hour bit %d: %w", i, err)
		}
		p.Hour[i] = pin
	}
	for i, name := range words {
		pin, err := byName(name)
		if err != nil {
			return nil, fmt.Errorf("word %v: %w", phrase.Flags(1<<i), err)
		}
		p.Phrase[i] = pin
	}
	return p, nil
}

func byName(name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no gpio pin named %q", name)
	}
	return pin, nil
}

func level(on bool) gpio.Level {
	if on {
		return gpio.High
	}
	return gpio.Low
}

// SetIndicators implements render.Indicators.
func (p *Pins) SetIndicators(hour uint8, flags phrase.Flags) error {
	var errs []error
	for i, pin := range p.Hour {
		if pin == nil {
			continue
		}
		if err := pin.Out(level(hour&(1<<i) != 0)); err != nil {
			errs = append(errs, fmt.Errorf("hour bit %d (%s): %w", i, pin, err))
		}
	}
	for i, pin := range p.Phrase {
		if pin == nil {
			continue
		}
		if err := pin.Out(level(flags&(1<<i) != 0)); err != nil {
			errs = append(errs, fmt.Errorf("word %v (%s): %w", phrase.Flags(1<<i), pin, err))
		}
	}
	return errors.Join(errs...)
}

// Blank turns off every lamp, so that someone looking at the clock can tell that the program
// isn't running.
func (p *Pins) Blank() error {
	var errs []error
	for _, pin := range append(p.Hour[:], p.Phrase[:]...) {
		if pin == nil {
			continue
		}
		if err := pin.Out(gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("blank %s: %w", pin, err))
		}
	}
	return errors.Join(errs...)
}
