package slotfill

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MrWong99/voicefill/pkg/cnnum"
)

// magnitudeWords are the numeral units a range leaves to its suffix.
const magnitudeWords = "百千万"

const (
	digitRangeExpr = `(\d+)\s*[-到至]\s*(\d+)`
	hanRangeExpr   = `([` + cnnum.Class + `]+)\s*[到至]\s*([` + cnnum.Class + `]+)`
)

// rangeRule detects a two-endpoint range and collapses it to its midpoint.
// The digit form is always tried before the Chinese-numeral form.
type rangeRule struct {
	digit *regexp.Regexp
	han   *regexp.Regexp
}

// newRangeRule builds a range rule whose match must be followed by suffix.
// An empty suffix matches a range anywhere in the text.
func newRangeRule(suffix string) *rangeRule {
	return &rangeRule{
		digit: regexp.MustCompile(digitRangeExpr + suffix),
		han:   regexp.MustCompile(hanRangeExpr + suffix),
	}
}

// Slot-scoped range rules. A range only counts for a slot when the slot's
// unit word follows it. Magnitude words after a Budget range are consumed
// but not applied: "3到5万" collapses to 4.
var (
	anyRange    = newRangeRule("")
	daysRange   = newRangeRule(`\s*天`)
	peopleRange = newRangeRule(`\s*` + personWord)
	budgetRange = newRangeRule(`\s*(?:[万千百]|元|块|人民币)`)
)

// ResolveRange finds the first range expression in text, digit form first,
// and returns the midpoint of its endpoints rounded half up. It reports
// false when text holds no range or a Chinese endpoint is not a numeral.
func ResolveRange(text string) (int, bool) {
	return anyRange.resolve(text)
}

func (r *rangeRule) resolve(text string) (int, bool) {
	if sm := r.digit.FindStringSubmatch(text); sm != nil {
		lo, errLo := strconv.Atoi(sm[1])
		hi, errHi := strconv.Atoi(sm[2])
		if errLo == nil && errHi == nil {
			return midpoint(lo, hi), true
		}
	}
	if sm := r.han.FindStringSubmatch(text); sm != nil {
		loTok, hiTok := sm[1], sm[2]
		// 三到五千 is "three to five thousand": the magnitude belongs to
		// the whole range and is dropped like in the digit form.
		if !strings.ContainsAny(loTok, magnitudeWords) {
			hiTok = strings.TrimRight(hiTok, magnitudeWords)
		}
		lo, okLo := cnnum.Parse(loTok)
		hi, okHi := cnnum.Parse(hiTok)
		if okLo && okHi {
			return midpoint(lo, hi), true
		}
	}
	return 0, false
}

// midpoint returns round((lo+hi)/2) with halves rounded up. Endpoints are
// never negative. The sum is never formed, so it cannot overflow.
func midpoint(lo, hi int) int {
	return lo/2 + hi/2 + (lo%2+hi%2+1)/2
}
