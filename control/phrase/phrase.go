// Package phrase maps a time to the words lit on the face of a German word clock.
package phrase

import (
	"strings"

	"github.com/jrockway/wordclock/control/timestate"
)

// Flags is the set of minute words to light.  The bit positions are the wire format of the
// diagnostic stream and must not change.
type Flags uint8

const (
	Ten          Flags = 1 << iota // zehn
	Five                           // fünf
	To                             // vor
	Past                           // nach
	Half                           // halb
	QuarterThree                   // drei (as in dreiviertel)
	Quarter                        // viertel
	OClock                         // uhr
)

// Has returns true if every flag in o is set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

// readingOrder is the order the minute words appear in a spoken phrase, "fünf vor halb".
var readingOrder = []struct {
	flag Flags
	word string
}{
	{Five, "fünf"},
	{Ten, "zehn"},
	{QuarterThree, "drei"},
	{Quarter, "viertel"},
	{To, "vor"},
	{Past, "nach"},
	{Half, "halb"},
}

// Words returns the minute words in f, in reading order.  "uhr" is not included because it
// follows the hour.
func (f Flags) Words() []string {
	var result []string
	for _, w := range readingOrder {
		if f.Has(w.flag) {
			result = append(result, w.word)
		}
	}
	return result
}

func (f Flags) String() string {
	words := f.Words()
	if f.Has(OClock) {
		words = append(words, "uhr")
	}
	if len(words) == 0 {
		return "none"
	}
	return strings.Join(words, "|")
}

var hourNames = [12]string{"zwölf", "eins", "zwei", "drei", "vier", "fünf", "sechs", "sieben", "acht", "neun", "zehn", "elf"}

// HourName returns the German name of an hour index.  Index 0 is twelve o'clock.  At the full
// hour, one o'clock is "ein uhr", not "eins uhr".
func HourName(hour uint8, oclock bool) string {
	if hour%12 == 1 && oclock {
		return "ein"
	}
	return hourNames[hour%12]
}

// Phrase returns the whole sentence the face shows, like "es ist zehn vor halb vier".
func Phrase(hour uint8, f Flags) string {
	words := append([]string{"es", "ist"}, f.Words()...)
	words = append(words, HourName(hour, f.Has(OClock)))
	if f.Has(OClock) {
		words = append(words, "uhr")
	}
	return strings.Join(words, " ")
}

// table maps each five minute bucket, 0 through 55, to the minute words for it.  The hour is
// shown as the coming hour from 14 minutes past onwards ("viertel vier" is 3:15).
var table = [12]Flags{
	OClock,
	Five | Past,
	Ten | Past,
	Quarter,
	Ten | To | Half,
	Five | To | Half,
	Half,
	Five | Past | Half,
	Ten | Past | Half,
	QuarterThree | Quarter,
	Ten | To,
	Five | To,
}

// Encode returns the hour index and the minute words that represent t.  The minute rounds up
// once more than half of it has passed, and the result is rounded to the nearest five minutes.
// From 14 minutes past on, the words count towards the next hour.
func Encode(t timestate.Time) (uint8, Flags) {
	minutes := uint(t.Minutes)
	if t.Seconds > 30 {
		minutes++
	}
	hours := uint(t.Hours)
	if minutes > 13 {
		hours++
	}
	bucket := timestate.RoundToNearest(minutes, 5)
	return uint8(hours % 12), table[(bucket/5)%12]
}
