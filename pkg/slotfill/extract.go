package slotfill

import "strconv"

// SourceRange is the [Result.Source] of a value produced by a collapsed
// range expression.
const SourceRange = "range"

// Option configures an [Extractor].
type Option func(*Extractor)

// WithTable replaces the rule table of t's slot.
func WithTable(t *RuleTable) Option {
	return func(e *Extractor) {
		if t != nil && t.slot.valid() {
			e.tables[t.slot] = t
		}
	}
}

// WithoutRanges disables range collapsing for all numeric slots.
func WithoutRanges() Option {
	return func(e *Extractor) {
		e.ranges = [numSlots]*rangeRule{}
	}
}

// Extractor fills slots from transcripts. It is read-only after
// construction and safe for concurrent use.
type Extractor struct {
	tables [numSlots]*RuleTable
	ranges [numSlots]*rangeRule
}

// New returns an Extractor using the default rule tables and slot-scoped
// range rules.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, s := range Slots() {
		e.tables[s] = DefaultTable(s)
	}
	e.ranges[Days] = daysRange
	e.ranges[Budget] = budgetRange
	e.ranges[People] = peopleRange
	for _, o := range opts {
		o(e)
	}
	return e
}

var defaultExtractor = New()

// Extract runs the default Extractor on transcript.
func Extract(transcript string) Patch {
	return defaultExtractor.Extract(transcript)
}

// Extract returns the patch of every slot that matched in transcript.
func (e *Extractor) Extract(transcript string) Patch {
	return PatchOf(e.Explain(transcript))
}

// Explain resolves every slot and returns one [Result] per slot in
// extraction order, including slots that did not match.
func (e *Extractor) Explain(transcript string) []Result {
	out := make([]Result, 0, numSlots)
	for _, s := range Slots() {
		out = append(out, e.ExtractSlot(s, transcript))
	}
	return out
}

// ExtractSlot resolves a single slot. Slots are independent: the outcome
// depends only on transcript and the slot's own range rule and table.
func (e *Extractor) ExtractSlot(slot Slot, transcript string) Result {
	res := Result{Slot: slot, Value: NoMatch}
	if !slot.valid() || transcript == "" {
		return res
	}

	if rr := e.ranges[slot]; rr != nil {
		if n, ok := rr.resolve(transcript); ok {
			res.Value = Matched(strconv.Itoa(n))
			res.Source = SourceRange
			return res
		}
	}

	if t := e.tables[slot]; t != nil {
		res.Value, res.Source = t.resolve(transcript)
	}
	return res
}
