package slotfill

import (
	"encoding/json"
	"fmt"
)

// Result records how a single slot was resolved.
type Result struct {
	Slot  Slot
	Value Value

	// Source names what produced Value: "range" for a collapsed range
	// expression or the name of the winning rule. Empty for NoMatch.
	Source string
}

// Patch is the set of slot values proposed by one extraction pass. The zero
// Patch is empty.
type Patch struct {
	values [numSlots]Value
}

// PatchOf builds a Patch from per-slot results. Results without a match are
// skipped; a later result for the same slot replaces an earlier one.
func PatchOf(results []Result) Patch {
	var p Patch
	for _, r := range results {
		if r.Value.IsMatch() {
			p.Set(r.Slot, r.Value)
		}
	}
	return p
}

// Set stores v for slot. Setting [NoMatch] removes the slot from the patch.
func (p *Patch) Set(slot Slot, v Value) {
	if !slot.valid() {
		return
	}
	p.values[slot] = v
}

// Get returns the value proposed for slot.
func (p Patch) Get(slot Slot) (string, bool) {
	if !slot.valid() {
		return "", false
	}
	return p.values[slot].Get()
}

// Value returns the raw [Value] for slot.
func (p Patch) Value(slot Slot) Value {
	if !slot.valid() {
		return NoMatch
	}
	return p.values[slot]
}

// Len returns the number of slots present in the patch.
func (p Patch) Len() int {
	n := 0
	for _, v := range p.values {
		if v.IsMatch() {
			n++
		}
	}
	return n
}

// Empty reports whether no slot matched.
func (p Patch) Empty() bool {
	return p.Len() == 0
}

// Slots returns the slots present in the patch, in extraction order.
func (p Patch) Slots() []Slot {
	var out []Slot
	for _, s := range Slots() {
		if p.values[s].IsMatch() {
			out = append(out, s)
		}
	}
	return out
}

// Map returns the patch as field name → value.
func (p Patch) Map() map[string]string {
	m := make(map[string]string, numSlots)
	for _, s := range p.Slots() {
		m[s.String()] = p.values[s].text
	}
	return m
}

// MarshalJSON encodes only the present fields.
func (p Patch) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// UnmarshalJSON decodes an object of field name → string value. Unknown
// field names are rejected.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = Patch{}
	for name, v := range m {
		s, ok := ParseSlot(name)
		if !ok {
			return fmt.Errorf("slotfill: unknown field %q", name)
		}
		p.Set(s, Matched(v))
	}
	return nil
}

// FormState is the caller-owned travel-plan form. All fields hold the text
// shown in the form inputs; numeric fields hold decimal integers.
type FormState struct {
	Destination string `json:"destination"`
	Days        string `json:"days"`
	Budget      string `json:"budget"`
	People      string `json:"people"`
	Preferences string `json:"preferences"`
}

// Apply overwrites the fields present in p and leaves every other field
// untouched.
func (f *FormState) Apply(p Patch) {
	for _, s := range p.Slots() {
		v, _ := p.Get(s)
		*f.field(s) = v
	}
}

// Field returns the current value of slot's field.
func (f *FormState) Field(slot Slot) string {
	if !slot.valid() {
		return ""
	}
	return *f.field(slot)
}

func (f *FormState) field(slot Slot) *string {
	switch slot {
	case Destination:
		return &f.Destination
	case Days:
		return &f.Days
	case Budget:
		return &f.Budget
	case People:
		return &f.People
	default:
		return &f.Preferences
	}
}
