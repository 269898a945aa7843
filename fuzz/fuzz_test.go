package fuzz

import (
	"testing"
	"time"

	"github.com/coregx/redos/parser"
)

func mustParse(t *testing.T, pattern string) *parser.Pattern {
	t.Helper()
	p, err := parser.Parse(pattern, parser.DefaultFlags())
	if err != nil {
		t.Fatalf("Parse(%q): %v", pattern, err)
	}
	return p
}

// TestSeeds tests seed derivation from the AST.
func TestSeeds(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string // seeds that must be present
	}{
		{pattern: "abc", want: []string{"abc"}},
		{pattern: "(a+)+", want: []string{"a"}},
		{pattern: "[a-z]+!", want: []string{"a"}},
		{pattern: "foo|bar", want: []string{"foo", "bar"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			seeds := Seeds(mustParse(t, tt.pattern), SeederStatic)
			if len(seeds) == 0 {
				t.Fatal("no seeds derived")
			}
			got := make(map[string]bool, len(seeds))
			for _, s := range seeds {
				got[s] = true
			}
			for _, want := range tt.want {
				if !got[want] {
					t.Errorf("seeds %v missing %q", seeds, want)
				}
			}
		})
	}

	t.Run("dynamic pumps repetitions", func(t *testing.T) {
		seeds := Seeds(mustParse(t, "(ab)+"), SeederDynamic)
		found := false
		for _, s := range seeds {
			if s == "abab" || s == "abababab" {
				found = true
			}
		}
		if !found {
			t.Errorf("dynamic seeds %v missing pumped expansion", seeds)
		}
	})
}

// TestMutator_Deterministic tests that mutation sequences reproduce under
// the same seed.
func TestMutator_Deterministic(t *testing.T) {
	pool := []rune{'a', 'b', '!'}
	m1 := NewMutator(42, pool)
	m2 := NewMutator(42, pool)
	for i := 0; i < 50; i++ {
		a := m1.Mutate("abc", "xyz")
		b := m2.Mutate("abc", "xyz")
		if a != b {
			t.Fatalf("iteration %d: %q != %q", i, a, b)
		}
	}
}

// TestPrescreener tests mandatory-literal extraction and admission.
func TestPrescreener(t *testing.T) {
	t.Run("mandatory literals", func(t *testing.T) {
		tests := []struct {
			pattern string
			want    []string
		}{
			{pattern: "foo.*bar", want: []string{"foo", "bar"}},
			{pattern: "(ab)+cd", want: []string{"ab", "cd"}},
			{pattern: "a|b", want: nil},
			{pattern: "x*", want: nil},
		}
		for _, tt := range tests {
			runs := mandatoryLiterals(mustParse(t, tt.pattern).Root)
			var long []string
			for _, r := range runs {
				if len(r) >= minAccelLiteral {
					long = append(long, r)
				}
			}
			if len(long) != len(tt.want) {
				t.Errorf("%q: literals = %v, want %v", tt.pattern, long, tt.want)
				continue
			}
			for i := range tt.want {
				if long[i] != tt.want[i] {
					t.Errorf("%q: literals = %v, want %v", tt.pattern, long, tt.want)
				}
			}
		}
	})

	t.Run("admits inputs containing a literal", func(t *testing.T) {
		ps := newPrescreener(mustParse(t, "foo.*bar"), AccelOn)
		if ps == nil {
			t.Fatal("prescreener not built")
		}
		if !ps.admits("xxfooxx") {
			t.Error("input with literal rejected")
		}
		if ps.admits("xxxxx") {
			t.Error("input without literal admitted")
		}
	})

	t.Run("off mode disables", func(t *testing.T) {
		if ps := newPrescreener(mustParse(t, "foo.*bar"), AccelOff); ps != nil {
			t.Error("prescreener built despite AccelOff")
		}
	})

	t.Run("nil prescreener admits everything", func(t *testing.T) {
		var ps *prescreener
		if !ps.admits("anything") {
			t.Error("nil prescreener should admit")
		}
	})
}

// TestChecker_FindsExponential tests that the fuzz loop flags classic
// ReDoS shapes without automaton help.
func TestChecker_FindsExponential(t *testing.T) {
	tests := []string{
		`^(a+)+$`,
		`^(a|a)*$`,
		`^(a+)+\1$`, // backreference variant, automaton cannot touch it
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			checker := NewChecker(Options{
				Seeder:               SeederStatic,
				MaxIterations:        300,
				RandSeed:             1,
				MaxSteps:             200000,
				Deadline:             time.Now().Add(30 * time.Second),
				ExponentialThreshold: 10,
				MaxAttackLength:      4096,
				AttackRepeat:         20,
			})
			res, err := checker.Check(mustParse(t, pattern))
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res == nil {
				t.Fatal("no witness found")
			}
			if !res.Complexity.IsExponential() {
				t.Errorf("complexity = %s, want exponential", res.Complexity)
			}
			if res.Attack == nil || res.Attack.Pump == "" {
				t.Error("missing attack pump")
			}
		})
	}
}

// TestChecker_SafePattern tests that plain patterns produce no witness.
func TestChecker_SafePattern(t *testing.T) {
	tests := []string{
		`^[a-z]+$`,
		`^abc$`,
		`^\d{1,10}$`,
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			checker := NewChecker(Options{
				Seeder:        SeederStatic,
				MaxIterations: 100,
				RandSeed:      1,
				MaxSteps:      200000,
				Deadline:      time.Now().Add(30 * time.Second),
			})
			res, err := checker.Check(mustParse(t, pattern))
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if res != nil {
				t.Errorf("unexpected witness %v for safe pattern", res.Complexity)
			}
		})
	}
}
