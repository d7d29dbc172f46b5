// Package face draws a picture of the word clock's face, and retains it for debugging the rest of
// the program without the lamps attached.
package face

import (
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"sync"

	"github.com/jrockway/wordclock/control/phrase"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	margin     = 8  // Border around the letters, in pixels.
	lineHeight = 16 // Distance between baselines.
	charWidth  = 7  // Advance of basicfont.Face7x13.
	ascent     = 11 // Baseline offset of basicfont.Face7x13.
)

var (
	background = color.NRGBA{R: 0, G: 0, B: 0, A: 0xff}
	litColor   = color.NRGBA{R: 0xff, G: 0xf0, B: 0xc0, A: 0xff}
	unlitColor = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
)

type litFunc func(hour uint8, f phrase.Flags) bool

func always(uint8, phrase.Flags) bool { return true }

func minute(flag phrase.Flags) litFunc {
	return func(_ uint8, f phrase.Flags) bool { return f.Has(flag) }
}

func hourIs(h uint8) litFunc {
	return func(hour uint8, _ phrase.Flags) bool { return hour == h }
}

// eins lights the "S" of one, except at one o'clock.
func eins(hour uint8, f phrase.Flags) bool {
	return hour == 1 && !f.Has(phrase.OClock)
}

// word is a run of letters on the face that lights as one unit.
type word struct {
	text    string
	lit     litFunc
	noSpace bool // the next word follows without a space
}

// layout is the face, line by line.  Umlauts are spelled out because the font is ASCII-only.  The
// "S" of "EINS" is its own word so that one o'clock reads "EIN UHR".
var layout = [][]word{
	{{text: "ES IST", lit: always}, {text: "FUENF", lit: minute(phrase.Five)}, {text: "ZEHN", lit: minute(phrase.Ten)}},
	{{text: "DREI", lit: minute(phrase.QuarterThree)}, {text: "VIERTEL", lit: minute(phrase.Quarter)}},
	{{text: "VOR", lit: minute(phrase.To)}, {text: "NACH", lit: minute(phrase.Past)}, {text: "HALB", lit: minute(phrase.Half)}},
	{{text: "ZWOELF", lit: hourIs(0)}, {text: "EIN", lit: hourIs(1), noSpace: true}, {text: "S", lit: eins}, {text: "ZWEI", lit: hourIs(2)}},
	{{text: "DREI", lit: hourIs(3)}, {text: "VIER", lit: hourIs(4)}, {text: "FUENF", lit: hourIs(5)}, {text: "SECHS", lit: hourIs(6)}},
	{{text: "SIEBEN", lit: hourIs(7)}, {text: "ACHT", lit: hourIs(8)}, {text: "NEUN", lit: hourIs(9)}},
	{{text: "ZEHN", lit: hourIs(10)}, {text: "ELF", lit: hourIs(11)}, {text: "UHR", lit: minute(phrase.OClock)}},
}

type placed struct {
	word
	dot    fixed.Point26_6
	bounds image.Rectangle
}

// place assigns every word in the layout a position and returns the size of the face.
func place() ([]placed, image.Rectangle) {
	var result []placed
	width := 0
	for row, line := range layout {
		x := margin
		y := margin + row*lineHeight
		for _, w := range line {
			wpx := len(w.text) * charWidth
			result = append(result, placed{
				word:   w,
				dot:    fixed.P(x, y+ascent),
				bounds: image.Rect(x, y, x+wpx, y+lineHeight),
			})
			x += wpx
			if !w.noSpace {
				x += charWidth
			}
		}
		if x > width {
			width = x
		}
	}
	return result, image.Rect(0, 0, width-charWidth+margin, 2*margin+len(layout)*lineHeight)
}

// Face is a picture of the clock.  It implements render.Indicators and http.Handler.
type Face struct {
	words []placed
	size  image.Rectangle

	mu    sync.Mutex
	img   *image.NRGBA // must hold mu to read or write.
	hour  uint8        // must hold mu to read or write.
	flags phrase.Flags // must hold mu to read or write.
}

// New returns a Face with nothing lit.
func New() *Face {
	f := new(Face)
	f.words, f.size = place()
	f.img = f.draw(0, 0)
	return f
}

func (f *Face) draw(hour uint8, flags phrase.Flags) *image.NRGBA {
	img := image.NewNRGBA(f.size)
	for x := f.size.Min.X; x < f.size.Max.X; x++ {
		for y := f.size.Min.Y; y < f.size.Max.Y; y++ {
			img.SetNRGBA(x, y, background)
		}
	}
	for _, w := range f.words {
		c := unlitColor
		if flags != 0 && w.lit(hour, flags) {
			c = litColor
		}
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(c),
			Face: basicfont.Face7x13,
			Dot:  w.dot,
		}
		d.DrawString(w.text)
	}
	return img
}

// SetIndicators redraws the face with the given words lit.  Nothing is lit when flags is empty,
// which is never the case for a rendered time.
func (f *Face) SetIndicators(hour uint8, flags phrase.Flags) error {
	img := f.draw(hour, flags)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.img, f.hour, f.flags = img, hour, flags
	return nil
}

// Current returns the sentence the face is showing.
func (f *Face) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flags == 0 {
		return ""
	}
	return phrase.Phrase(f.hour, f.flags)
}

// ServeHTTP serves the current face as a PNG.
func (f *Face) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Images are never modified after draw, so encoding can happen without the lock.
	f.mu.Lock()
	img := f.img
	f.mu.Unlock()
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Printf("encoding face: %v", err)
	}
}
