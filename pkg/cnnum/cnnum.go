// Package cnnum normalises spoken Chinese numerals into integers.
//
// The accepted grammar is deliberately small. A token is either a single
// digit word (零 through 九, 两 as a colloquial 二, or 十), or a compound of
// the shape
//
//	[digit] unit [digit]
//
// where unit is one of 十, 百, 千 or 万. The leading digit defaults to 1 and
// the trailing digit to 0, so 十五 is 15, 二十 is 20 and 三千五 is 3005.
// Anything outside the grammar is reported as not-a-number rather than as an
// error; callers treat it as "this phrasing did not match".
package cnnum

import "strings"

// Class lists every rune that may appear in a numeral token. It is meant to
// be embedded in a regexp character class: "[" + Class + "]+".
const Class = "零〇一二两三四五六七八九十百千万"

var digitValues = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1,
	'二': 2, '两': 2,
	'三': 3,
	'四': 4,
	'五': 5,
	'六': 6,
	'七': 7,
	'八': 8,
	'九': 9,
}

var unitValues = map[rune]int{
	'十': 10,
	'百': 100,
	'千': 1000,
	'万': 10000,
}

// Parse converts token into its integer value. The second return value is
// false when token is not a recognised numeral.
func Parse(token string) (int, bool) {
	rs := []rune(strings.TrimSpace(token))
	if len(rs) == 0 {
		return 0, false
	}

	if len(rs) == 1 {
		if v, ok := digitValues[rs[0]]; ok {
			return v, true
		}
	}

	i := 0
	lead := 1
	if v, ok := digitValues[rs[0]]; ok {
		lead = v
		i++
	}
	if i >= len(rs) {
		return 0, false
	}
	unit, ok := unitValues[rs[i]]
	if !ok {
		return 0, false
	}
	i++

	trail := 0
	if i < len(rs) {
		v, ok := digitValues[rs[i]]
		if !ok {
			return 0, false
		}
		trail = v
		i++
	}
	if i != len(rs) {
		return 0, false
	}
	return lead*unit + trail, true
}

// IsNumeral reports whether r is one of the runes in [Class].
func IsNumeral(r rune) bool {
	if _, ok := digitValues[r]; ok {
		return true
	}
	_, ok := unitValues[r]
	return ok
}

// ContainsNumeral reports whether s holds at least one Chinese numeral rune.
func ContainsNumeral(s string) bool {
	return strings.ContainsFunc(s, IsNumeral)
}
