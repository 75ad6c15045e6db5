package slotfill

import (
	"strings"
	"testing"
)

func TestDefaultTables_DeclaredOrder(t *testing.T) {
	t.Parallel()

	for _, s := range Slots() {
		table := DefaultTable(s)
		if table.Slot() != s {
			t.Errorf("DefaultTable(%s).Slot() = %s", s, table.Slot())
		}
		if table.Len() == 0 {
			t.Errorf("DefaultTable(%s) is empty", s)
		}
		seen := make(map[string]bool)
		for i, r := range table.Rules() {
			if r.Priority != i {
				t.Errorf("%s rule %q priority = %d, want %d", s, r.Name, r.Priority, i)
			}
			if !strings.HasPrefix(r.Name, s.String()+".") {
				t.Errorf("%s rule %q is not prefixed with the slot name", s, r.Name)
			}
			if seen[r.Name] {
				t.Errorf("%s rule name %q is duplicated", s, r.Name)
			}
			seen[r.Name] = true
		}
	}
}

func TestRuleTable_RulesReturnsCopy(t *testing.T) {
	t.Parallel()

	rules := DefaultTable(Days).Rules()
	rules[0].Name = "mutated"
	if DefaultTable(Days).Rules()[0].Name == "mutated" {
		t.Error("Rules() exposed the table's backing slice")
	}
}

func TestRuleTable_FirstMatchWins(t *testing.T) {
	t.Parallel()

	// Both destination.want and destination.want-verb match; the earlier
	// rule decides the value.
	v, src := DefaultTable(Destination).resolve("想去北京玩，三天")
	if got, _ := v.Get(); got != "北京玩" || src != "destination.want" {
		t.Errorf("resolve = (%q, %q), want (%q, %q)", got, src, "北京玩", "destination.want")
	}

	v, src = DefaultTable(Destination).resolve("想去北京玩三天")
	if got, _ := v.Get(); got != "北京" || src != "destination.want-verb" {
		t.Errorf("resolve = (%q, %q), want (%q, %q)", got, src, "北京", "destination.want-verb")
	}
}

func TestRuleTable_PartialNumeralFallsThrough(t *testing.T) {
	t.Parallel()

	table := NewRuleTable(Days,
		MustRule("days.numeral", `(?P<value>[一二三四五六七八九十百千]+)天`),
		MustRule("days.digits", `(?P<value>\d+)天`),
	)
	v, src := table.resolve("一百二十天，其实8天")
	if got, _ := v.Get(); got != "8" || src != "days.digits" {
		t.Errorf("resolve = (%q, %q), want (%q, %q)", got, src, "8", "days.digits")
	}
}

func TestRuleTable_BudgetMagnitudes(t *testing.T) {
	t.Parallel()

	table := NewRuleTable(Budget,
		MustRule("budget.amount", `(?P<value>\d+)(?P<unit>[万千百])?`),
	)

	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{"3", "3", true},
		{"3百", "300", true},
		{"3千", "3000", true},
		{"3万", "30000", true},
		{"99999999999999999万", "", false},
	}
	for _, tt := range tests {
		v, _ := table.resolve(tt.text)
		got, ok := v.Get()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("resolve(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRuleTable_NonNumericTrimmed(t *testing.T) {
	t.Parallel()

	v, _ := DefaultTable(Destination).resolve("要去  大理 ，")
	if got, _ := v.Get(); got != "大理" {
		t.Errorf("destination = %q, want %q", got, "大理")
	}

	// A capture that trims to nothing is not a value.
	table := NewRuleTable(Destination, MustRule("destination.blank", `去(?P<value>\s+)，`))
	if v, _ := table.resolve("去  ，"); v.IsMatch() {
		t.Errorf("blank capture produced %q", v)
	}
}

func TestNewRule_RequiresValueGroup(t *testing.T) {
	t.Parallel()

	if _, err := NewRule("bad", `(\d+)天`); err == nil {
		t.Error("NewRule without a value group returned nil error")
	}
	if _, err := NewRule("broken", `(?P<value>[`); err == nil {
		t.Error("NewRule with an invalid pattern returned nil error")
	}
	r, err := NewRule("ok", `(?P<value>\d+)天`)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	if r.Pattern() != `(?P<value>\d+)天` {
		t.Errorf("Pattern() = %q", r.Pattern())
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{"007", 7, true},
		{"十五", 15, true},
		{"99999999999999999999", 0, false},
		{"一百二十", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseNumber(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
