package slotfill

import (
	"strings"
	"unicode/utf8"
)

// boundaryRunes are the sentence-boundary punctuation marks that end a
// captured phrase. The enumeration comma 、 is not a boundary.
const boundaryRunes = "，。；！？,;!?"

// Cleanup tidies a captured free-text phrase: it trims whitespace, drops one
// trailing sentence-boundary mark and then a trailing 等等 ("etc."). A
// single trailing 等 is only dropped after an enumeration such as 美食、购物等
// or when it stands alone, so words like 平等 survive.
func Cleanup(text string) string {
	s := strings.TrimSpace(text)
	if r, size := utf8.DecodeLastRuneInString(s); size > 0 && strings.ContainsRune(boundaryRunes, r) {
		s = strings.TrimSpace(s[:len(s)-size])
	}
	if t, ok := strings.CutSuffix(s, "等等"); ok {
		s = t
	} else if t, ok := strings.CutSuffix(s, "等"); ok && (t == "" || strings.Contains(t, "、")) {
		s = t
	}
	return strings.TrimSpace(s)
}
