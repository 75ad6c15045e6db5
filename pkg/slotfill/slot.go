// Package slotfill extracts travel-plan form fields from a spoken Chinese
// transcript.
//
// Five slots are filled independently: [Destination], [Days], [Budget],
// [People] and [Preferences]. Each slot owns an ordered [RuleTable]; the
// first rule that yields a usable value wins. Numeric slots first try a
// two-endpoint range expression ("3-5天", "三到五天") and collapse it to its
// rounded midpoint before falling back to their rules.
//
// The result of one extraction pass is a [Patch]: only the slots that
// matched are present, and [FormState.Apply] overwrites exactly those fields.
// A slot that does not match never clears a field.
//
// Extraction is a pure function of the transcript. It never returns an error
// and an [Extractor] is safe for concurrent use.
package slotfill

import "fmt"

// Slot identifies one of the form fields filled from a transcript.
type Slot int

const (
	Destination Slot = iota
	Days
	Budget
	People
	Preferences

	numSlots = iota
)

// Slots returns every slot in extraction order.
func Slots() []Slot {
	return []Slot{Destination, Days, Budget, People, Preferences}
}

// String returns the slot's form field name.
func (s Slot) String() string {
	switch s {
	case Destination:
		return "destination"
	case Days:
		return "days"
	case Budget:
		return "budget"
	case People:
		return "people"
	case Preferences:
		return "preferences"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Numeric reports whether the slot holds an integer value.
func (s Slot) Numeric() bool {
	return s == Days || s == Budget || s == People
}

// ParseSlot returns the slot whose [Slot.String] is name.
func ParseSlot(name string) (Slot, bool) {
	for _, s := range Slots() {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

func (s Slot) valid() bool {
	return s >= 0 && int(s) < numSlots
}

// Value is the outcome of extracting one slot: either a matched string or
// no match. The zero Value is [NoMatch].
type Value struct {
	text string
	ok   bool
}

// NoMatch is the Value of a slot whose rules all failed.
var NoMatch = Value{}

// Matched wraps an extracted value. An empty string is not a value and
// yields [NoMatch].
func Matched(v string) Value {
	if v == "" {
		return NoMatch
	}
	return Value{text: v, ok: true}
}

// Get returns the matched string and true, or "" and false for [NoMatch].
func (v Value) Get() (string, bool) {
	return v.text, v.ok
}

// IsMatch reports whether v holds a value.
func (v Value) IsMatch() bool {
	return v.ok
}

// String returns the matched text, or "<no match>".
func (v Value) String() string {
	if !v.ok {
		return "<no match>"
	}
	return v.text
}

// Magnitude is a multiplier word that may follow a Budget numeral.
type Magnitude int

const (
	Hundred     Magnitude = 100
	Thousand    Magnitude = 1000
	TenThousand Magnitude = 10000
)

// ParseMagnitude maps 百, 千 and 万 to their Magnitude.
func ParseMagnitude(word string) (Magnitude, bool) {
	switch word {
	case "百":
		return Hundred, true
	case "千":
		return Thousand, true
	case "万":
		return TenThousand, true
	}
	return 0, false
}

// Multiplier returns the integer factor for m.
func (m Magnitude) Multiplier() int {
	return int(m)
}
