// Package render sends the phrase for a time to the clock's outputs.
package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/jrockway/wordclock/control/phrase"
	"github.com/jrockway/wordclock/control/timestate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rendersCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "renders",
		Help: "count of times the phrase was recomputed and sent to the outputs",
	})

	renderErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_errors",
		Help: "count of failed writes to an output",
	}, []string{"output"})
)

// Indicators lights the words on the face.  Exactly the words in flags should be lit afterwards,
// and the hour indicator should show hour.
type Indicators interface {
	SetIndicators(hour uint8, flags phrase.Flags) error
}

// Tee sends indicator updates to several outputs.
type Tee []Indicators

// SetIndicators implements Indicators.  Every output is updated even if an earlier one fails.
func (t Tee) SetIndicators(hour uint8, flags phrase.Flags) error {
	var errs []error
	for i, ind := range t {
		if err := ind.SetIndicators(hour, flags); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Result is what one render put on the outputs.
type Result struct {
	Time  timestate.Time
	Hour  uint8
	Flags phrase.Flags
}

func (r Result) String() string {
	return fmt.Sprintf("%v: %s", r.Time, phrase.Phrase(r.Hour, r.Flags))
}

// Pipeline encodes a time and writes it to the diagnostic stream and the indicators.  Either may
// be nil.
type Pipeline struct {
	Indicators Indicators

	// Diagnostic receives three bytes per render: the hour index, the phrase flags, and the raw
	// seconds.
	Diagnostic io.ByteWriter
}

// Render shows t on the outputs.  Both outputs are attempted even if the first fails.
func (p *Pipeline) Render(t timestate.Time) (Result, error) {
	rendersCounter.Inc()
	hour, flags := phrase.Encode(t)
	r := Result{Time: t, Hour: hour, Flags: flags}

	var errs []error
	if p.Diagnostic != nil {
		if err := sendDiagnostic(p.Diagnostic, hour, flags, t.Seconds); err != nil {
			renderErrorsCounter.WithLabelValues("diagnostic").Inc()
			errs = append(errs, fmt.Errorf("write diagnostic bytes: %w", err))
		}
	}
	if p.Indicators != nil {
		if err := p.Indicators.SetIndicators(hour, flags); err != nil {
			renderErrorsCounter.WithLabelValues("indicators").Inc()
			errs = append(errs, fmt.Errorf("set indicators: %w", err))
		}
	}
	return r, errors.Join(errs...)
}

func sendDiagnostic(w io.ByteWriter, hour uint8, flags phrase.Flags, seconds uint8) error {
	for _, b := range []byte{hour, byte(flags), seconds} {
		if err := w.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}
