package commands

import (
	"testing"

	"github.com/pgstack/pgstack/pkg/hba"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"10.0.0.5", []string{"10.0.0.5"}},
		{" 10.0.0.5 , 192.168.1.0/24 ,", []string{"10.0.0.5", "192.168.1.0/24"}},
		{",,", nil},
	}
	for _, tt := range tests {
		got := splitList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestRuleTableRowsPreserveOrder(t *testing.T) {
	rules := hba.NewCompiler().Compile([]string{"10.0.0.5"})
	rows := ruleTableRows(rules)
	if len(rows) != len(rules) {
		t.Fatalf("rows = %d, want %d", len(rows), len(rules))
	}
	for i, row := range rows {
		if row[0] != rules[i].Priority {
			t.Errorf("row %d priority = %v, want %d", i, row[0], rules[i].Priority)
		}
	}
}
