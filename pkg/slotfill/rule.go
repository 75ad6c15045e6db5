package slotfill

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/voicefill/pkg/cnnum"
)

// Capture group names recognised in rule patterns.
const (
	groupValue = "value"
	groupUnit  = "unit"
)

// Rule is one pattern in a slot's ordered rule list. Its pattern must hold a
// named group "value" for the primary capture. Budget rules may add a "unit"
// group capturing a magnitude word (百, 千, 万).
type Rule struct {
	// Name identifies the rule in logs and metrics.
	Name string

	// Priority is the rule's position in its table. Lower runs first.
	Priority int

	pattern *regexp.Regexp
	value   int
	unit    int
}

// NewRule compiles expr into a Rule. It returns an error when the pattern
// does not compile or has no "value" group.
func NewRule(name, expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("slotfill: rule %q: %w", name, err)
	}
	r := Rule{
		Name:    name,
		pattern: re,
		value:   re.SubexpIndex(groupValue),
		unit:    re.SubexpIndex(groupUnit),
	}
	if r.value < 0 {
		return Rule{}, fmt.Errorf("slotfill: rule %q: pattern has no (?P<%s>...) group", name, groupValue)
	}
	return r, nil
}

// MustRule is like [NewRule] but panics on error. It is intended for
// package-level rule tables.
func MustRule(name, expr string) Rule {
	r, err := NewRule(name, expr)
	if err != nil {
		panic(err)
	}
	return r
}

// Pattern returns the rule's source expression.
func (r Rule) Pattern() string {
	if r.pattern == nil {
		return ""
	}
	return r.pattern.String()
}

// match is the raw outcome of applying a rule to a transcript.
type match struct {
	value string
	unit  string
}

// apply runs the rule against text. It reports false when the pattern does
// not match or the primary capture is empty.
func (r Rule) apply(text string) (match, bool) {
	if r.pattern == nil {
		return match{}, false
	}
	sm := r.pattern.FindStringSubmatch(text)
	if sm == nil || sm[r.value] == "" {
		return match{}, false
	}
	m := match{value: sm[r.value]}
	if r.unit >= 0 {
		m.unit = sm[r.unit]
	}
	return m, true
}

// RuleTable is the priority-ordered rule list of one slot. Rules run in
// ascending Priority; the first one producing a value wins.
type RuleTable struct {
	slot  Slot
	rules []Rule
}

// NewRuleTable builds a table for slot. The argument order is the priority
// order: each rule's Priority is set to its index.
func NewRuleTable(slot Slot, rules ...Rule) *RuleTable {
	t := &RuleTable{slot: slot, rules: make([]Rule, len(rules))}
	for i, r := range rules {
		r.Priority = i
		t.rules[i] = r
	}
	return t
}

// Slot returns the slot this table fills.
func (t *RuleTable) Slot() Slot {
	return t.slot
}

// Rules returns a copy of the rules in priority order.
func (t *RuleTable) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules in the table.
func (t *RuleTable) Len() int {
	return len(t.rules)
}

// resolve walks the table in priority order and returns the first usable
// value along with the name of the rule that produced it.
func (t *RuleTable) resolve(text string) (Value, string) {
	for _, r := range t.rules {
		m, ok := r.apply(text)
		if !ok {
			continue
		}
		v, ok := t.convert(m)
		if !ok {
			continue
		}
		return v, r.Name
	}
	return NoMatch, ""
}

// convert turns a raw rule match into the slot's value. Numeric slots
// normalise the numeral and, for Budget, apply the captured magnitude. A
// product that overflows int is treated like an unparseable numeral.
func (t *RuleTable) convert(m match) (Value, bool) {
	if !t.slot.Numeric() {
		var s string
		if t.slot == Preferences {
			s = Cleanup(m.value)
		} else {
			s = strings.TrimSpace(m.value)
		}
		v := Matched(s)
		return v, v.IsMatch()
	}

	n, ok := parseNumber(m.value)
	if !ok {
		return NoMatch, false
	}
	if t.slot == Budget {
		if mag, ok := ParseMagnitude(m.unit); ok {
			mult := mag.Multiplier()
			if n > math.MaxInt/mult {
				return NoMatch, false
			}
			n *= mult
		}
	}
	return Matched(strconv.Itoa(n)), true
}

// parseNumber reads an ASCII digit run or a Chinese numeral token.
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if isASCIIDigits(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return cnnum.Parse(s)
}

func isASCIIDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
