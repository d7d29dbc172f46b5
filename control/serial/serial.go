// Package serial writes the clock's diagnostic byte stream to a UART.
package serial

import (
	"fmt"
	"io"

	"github.com/pkg/term"
	"golang.org/x/net/trace"
)

// DefaultSpeed is the UART baud rate the diagnostic reader expects.
const DefaultSpeed = 9600

// Port is a diagnostic byte sink.  Bytes are written immediately, with no framing; a reader on the
// other end sees (hour, flags, seconds) triples.
type Port struct {
	w    io.Writer
	name string
	l    trace.EventLog
}

// Open opens a serial device in raw mode at the given speed.
func Open(name string, speed int) (*Port, error) {
	t, err := term.Open(name, term.Speed(speed), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open %s at %d baud: %w", name, speed, err)
	}
	l := trace.NewEventLog("serial", name)
	l.Printf("opened at %d baud", speed)
	return &Port{w: t, name: name, l: l}, nil
}

// NewWriter returns a Port that writes to w, for use without a UART attached.
func NewWriter(name string, w io.Writer) *Port {
	return &Port{w: w, name: name, l: trace.NewEventLog("serial", name)}
}

// WriteByte implements io.ByteWriter.
func (p *Port) WriteByte(b byte) error {
	if _, err := p.w.Write([]byte{b}); err != nil {
		p.l.Errorf("write %#02x: %v", b, err)
		return fmt.Errorf("write to %s: %w", p.name, err)
	}
	return nil
}

// Close closes the underlying device, if it can be closed.
func (p *Port) Close() error {
	p.l.Finish()
	if c, ok := p.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %s: %w", p.name, err)
		}
	}
	return nil
}

// Trace is a diagnostic byte sink that records each render's bytes in an event log, viewable at
// /debug/events, for running without a UART.
type Trace struct {
	l   trace.EventLog
	buf []byte
}

// NewTrace returns a Trace sink.
func NewTrace() *Trace {
	return &Trace{l: trace.NewEventLog("serial", "trace")}
}

// WriteByte implements io.ByteWriter.  Bytes are logged three at a time.
func (t *Trace) WriteByte(b byte) error {
	t.buf = append(t.buf, b)
	if len(t.buf) == 3 {
		t.l.Printf("hour=%d flags=%#08b seconds=%d", t.buf[0], t.buf[1], t.buf[2])
		t.buf = t.buf[:0]
	}
	return nil
}
