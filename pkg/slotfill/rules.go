package slotfill

import "github.com/MrWong99/voicefill/pkg/cnnum"

// Pattern fragments shared by the default rule tables.
const (
	// boundary is one sentence-boundary punctuation mark.
	boundary = `[，。；！？,;!?]`

	// notBoundary is a single rune that is not a sentence boundary.
	notBoundary = `[^，。；！？,;!?]`

	// phraseEnd ends a free-text capture: a boundary or end of transcript.
	phraseEnd = `(?:` + boundary + `|$)`

	hanNumber = `[` + cnnum.Class + `]+`

	magnitude  = `(?P<unit>[万千百])?`
	currency   = `(?:块钱|元|块|人民币|(?i:rmb))`
	budgetLead = `预算\s*(?:是|为|在|大概|大约)?\s*`

	stayVerb  = `(?:待|呆|停留|玩|旅游|旅行|游玩)`
	aboutWord = `(?:需要|大概|大约|差不多)`
	groupWord = `(?:我们|总共|一共|共|一起去|一行|有)`

	// personWord is 人 or 个人, not the 人 of 人民币.
	personWord = `个?人(?:$|[^民])`
)

// DefaultTable returns the built-in rule table for slot. Tables are shared;
// callers must not mutate the returned rules.
func DefaultTable(slot Slot) *RuleTable {
	switch slot {
	case Destination:
		return destinationRules
	case Days:
		return daysRules
	case Budget:
		return budgetRules
	case People:
		return peopleRules
	case Preferences:
		return preferenceRules
	}
	return NewRuleTable(slot)
}

var destinationRules = NewRuleTable(Destination,
	MustRule("destination.want", `想去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.going", `要去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.plan", `计划去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.intend", `打算去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.prepare", `准备去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.target", `目的地是\s*(?P<value>.+?)`+boundary),
	MustRule("destination.heading", `前往\s*(?P<value>.+?)`+boundary),
	MustRule("destination.tour", `旅游去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.travel", `旅行去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.visit", `游玩去\s*(?P<value>.+?)`+boundary),
	MustRule("destination.want-verb", `想去\s*(?P<value>`+notBoundary+`+?)(?:的|待|停|玩)`),
	MustRule("destination.to-travel", `到\s*(?P<value>`+notBoundary+`+?)(?:旅游|旅行|游玩)`),
	MustRule("destination.trailing", `(?:想|要|计划|打算|准备)去\s*(?P<value>`+notBoundary+`+)$`),
)

var daysRules = NewRuleTable(Days,
	MustRule("days.stay-digits", stayVerb+`\s*(?P<value>\d+)\s*天`),
	MustRule("days.about-digits", aboutWord+`\s*(?P<value>\d+)\s*天`),
	MustRule("days.digits", `(?P<value>\d+)\s*天`),
	MustRule("days.stay-numeral", stayVerb+`(?P<value>`+hanNumber+`)天`),
	MustRule("days.about-numeral", aboutWord+`(?P<value>`+hanNumber+`)天`),
	MustRule("days.numeral", `(?P<value>`+hanNumber+`)天`),
)

var budgetRules = NewRuleTable(Budget,
	MustRule("budget.digits", budgetLead+`(?P<value>\d+)\s*`+magnitude+`\s*`+currency),
	MustRule("budget.about-digits", `(?:大约|大概)\s*(?P<value>\d+)\s*`+magnitude+`\s*`+currency),
	MustRule("budget.currency", `(?P<value>\d+)\s*`+magnitude+`\s*`+currency),
	MustRule("budget.around", `(?:大约|大概)\s*(?P<value>\d+)\s*`+magnitude+`\s*左右`),
	MustRule("budget.bare", budgetLead+`(?P<value>\d+)\s*(?P<unit>[万千百])`),
	MustRule("budget.numeral", budgetLead+`(?P<value>`+hanNumber+`)\s*`+currency),
	MustRule("budget.numeral-currency", `(?P<value>`+hanNumber+`)\s*`+currency),
)

var peopleRules = NewRuleTable(People,
	MustRule("people.group-digits", groupWord+`\s*(?P<value>\d+)\s*`+personWord),
	MustRule("people.digits", `(?P<value>\d+)\s*`+personWord),
	MustRule("people.group-numeral", groupWord+`(?P<value>`+hanNumber+`)`+personWord),
	MustRule("people.numeral", `(?P<value>`+hanNumber+`)`+personWord),
)

var preferenceRules = NewRuleTable(Preferences,
	MustRule("preferences.especially", `特别喜欢\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.most", `最喜欢\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.like", `喜欢\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.favor", `偏爱\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.prefer", `偏好\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.hobby", `爱好\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.interest", `对\s*(?P<value>`+notBoundary+`+?)感兴趣`),
	MustRule("preferences.lean", `倾向于\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.hope", `希望\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.want", `想要\s*(?P<value>[^去，。；！？,;!?]`+notBoundary+`*)`),
	MustRule("preferences.play", `想玩\s*(?P<value>.+?)`+phraseEnd),
	MustRule("preferences.wish", `想(?P<value>[^去要玩，。；！？,;!?\s]`+notBoundary+`*)`),
)
