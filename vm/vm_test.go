package vm

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coregx/redos/parser"
)

func compile(t *testing.T, pattern string, flags parser.Flags) *Program {
	t.Helper()
	p, err := parser.Parse(pattern, flags)
	if err != nil {
		t.Fatalf("Parse(%q): %v", pattern, err)
	}
	return Compile(p)
}

func runVM(t *testing.T, prog *Program, input string) Result {
	t.Helper()
	res, err := NewInterpreter(prog, input, 0, time.Time{}).Run()
	if err != nil {
		t.Fatalf("Run(%q): %v", input, err)
	}
	return res
}

// TestInterpreter_Match tests matching semantics.
func TestInterpreter_Match(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"abc", "abc", true},
		{"abc", "xabcy", true},
		{"abc", "ab", false},
		{"^abc$", "abc", true},
		{"^abc$", "xabc", false},
		{"a|b", "b", true},
		{"a|b", "c", false},
		{"a*", "", true},
		{"a+", "", false},
		{"a+", "aaa", true},
		{"a?b", "b", true},
		{"a{2,3}", "aa", true},
		{"^a{2,3}$", "aaaa", false},
		{"[a-c]+", "abcabc", true},
		{"[^a-c]", "d", true},
		{"[^a-c]", "a", false},
		{".", "\n", false},
		{".", "x", true},
		{`\d+`, "abc123", true},
		{`^\d+$`, "12a", false},
		{`a\b`, "a b", true},
		{`a\b`, "ab", false},
		{`\Bb`, "ab", true},
		{`(ab)+`, "ababab", true},
		{`^(ab)+$`, "aba", false},
		{`^(a)(b)\2\1$`, "abba", true},
		{`^(a)(b)\2\1$`, "abab", false},
		{`^(?P<x>ab)\g<x>$`, "abab", true},
		{`a(?=b)`, "ab", true},
		{`a(?=b)`, "ac", false},
		{`a(?!b)`, "ac", true},
		{`a(?!b)`, "ab", false},
		{`(?<=a)b`, "ab", true},
		{`(?<=a)b`, "cb", false},
		{`(?<!a)b`, "cb", true},
		{`\Aab\Z`, "ab", true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			prog := compile(t, tt.pattern, parser.DefaultFlags())
			res := runVM(t, prog, tt.input)
			if res.Matched != tt.want {
				t.Errorf("Matched = %v, want %v", res.Matched, tt.want)
			}
			if res.Steps <= 0 {
				t.Error("step counter did not advance")
			}
		})
	}
}

// TestInterpreter_Flags tests flag-sensitive matching.
func TestInterpreter_Flags(t *testing.T) {
	t.Run("ignore case", func(t *testing.T) {
		prog := compile(t, "^abc$", parser.Flags{IgnoreCase: true, Unicode: true})
		if !runVM(t, prog, "AbC").Matched {
			t.Error("case-insensitive match failed")
		}
	})
	t.Run("dotall", func(t *testing.T) {
		prog := compile(t, "^a.b$", parser.Flags{DotAll: true, Unicode: true})
		if !runVM(t, prog, "a\nb").Matched {
			t.Error("dotall dot should match newline")
		}
	})
	t.Run("multiline", func(t *testing.T) {
		prog := compile(t, "^b$", parser.Flags{Multiline: true, Unicode: true})
		if !runVM(t, prog, "a\nb\nc").Matched {
			t.Error("multiline anchor should match at line boundary")
		}
	})
}

// TestInterpreter_StepGrowth tests that step counts expose backtracking
// blow-up: this is the property the fuzz and recall paths depend on.
func TestInterpreter_StepGrowth(t *testing.T) {
	t.Run("linear pattern", func(t *testing.T) {
		prog := compile(t, "^[a-z]+$", parser.DefaultFlags())
		s1 := runVM(t, prog, strings.Repeat("a", 50)).Steps
		s2 := runVM(t, prog, strings.Repeat("a", 100)).Steps
		if ratio := float64(s2) / float64(s1); ratio > 4 {
			t.Errorf("linear pattern grew by %.1fx when input doubled", ratio)
		}
	})

	t.Run("exponential pattern", func(t *testing.T) {
		prog := compile(t, "^(a+)+$", parser.DefaultFlags())
		s1 := runVM(t, prog, strings.Repeat("a", 10)+"!").Steps
		s2 := runVM(t, prog, strings.Repeat("a", 15)+"!").Steps
		// Five more pump characters must multiply the work roughly 2^5
		// times; accept half to be robust.
		if ratio := float64(s2) / float64(s1); ratio < 16 {
			t.Errorf("exponential pattern grew only %.1fx for 5 extra pumps", ratio)
		}
	})

	t.Run("quadratic pattern", func(t *testing.T) {
		prog := compile(t, "^a*a*$", parser.DefaultFlags())
		s1 := runVM(t, prog, strings.Repeat("a", 40)+"!").Steps
		s2 := runVM(t, prog, strings.Repeat("a", 80)+"!").Steps
		ratio := float64(s2) / float64(s1)
		if ratio < 2.5 || ratio > 8 {
			t.Errorf("quadratic pattern grew %.1fx when input doubled, want ~4x", ratio)
		}
	})
}

// TestInterpreter_Budgets tests the step and deadline budgets.
func TestInterpreter_Budgets(t *testing.T) {
	t.Run("step budget", func(t *testing.T) {
		prog := compile(t, "^(a+)+$", parser.DefaultFlags())
		input := strings.Repeat("a", 64) + "!"
		_, err := NewInterpreter(prog, input, 10000, time.Time{}).Run()
		if !errors.Is(err, ErrStepBudget) {
			t.Errorf("err = %v, want ErrStepBudget", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		prog := compile(t, "^(a+)+$", parser.DefaultFlags())
		input := strings.Repeat("a", 64) + "!"
		deadline := time.Now().Add(-time.Second)
		_, err := NewInterpreter(prog, input, 0, deadline).Run()
		if !errors.Is(err, ErrDeadline) {
			t.Errorf("err = %v, want ErrDeadline", err)
		}
	})

	t.Run("steps reported on budget trip", func(t *testing.T) {
		prog := compile(t, "^(a+)+$", parser.DefaultFlags())
		input := strings.Repeat("a", 64) + "!"
		res, _ := NewInterpreter(prog, input, 10000, time.Time{}).Run()
		if res.Steps < 10000 {
			t.Errorf("Steps = %d, want the budget's worth of work", res.Steps)
		}
	})
}

// TestCompile_Anchoring tests the anchored-start detection used to skip
// the per-start retry loop.
func TestCompile_Anchoring(t *testing.T) {
	tests := []struct {
		pattern string
		want    bool
	}{
		{"^abc", true},
		{`\Aabc`, true},
		{"abc", false},
		{"(^a|^b)", true},
		{"(^a|b)", false},
		{"a^b", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			prog := compile(t, tt.pattern, parser.DefaultFlags())
			if prog.Anchored != tt.want {
				t.Errorf("Anchored = %v, want %v", prog.Anchored, tt.want)
			}
		})
	}
}
