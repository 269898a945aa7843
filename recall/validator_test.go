package recall

import (
	"testing"
	"time"

	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/parser"
	"github.com/coregx/redos/vm"
)

func compile(t *testing.T, pattern string) *vm.Program {
	t.Helper()
	p, err := parser.Parse(pattern, parser.DefaultFlags())
	if err != nil {
		t.Fatalf("Parse(%q): %v", pattern, err)
	}
	return vm.Compile(p)
}

// TestValidate_ConfirmsExponential tests that a genuine exponential
// witness passes validation.
func TestValidate_ConfirmsExponential(t *testing.T) {
	prog := compile(t, `^(a+)+$`)
	attack := diagnostics.NewAttackPattern("", "a", "!", 20)

	v := NewValidator(Options{TrialTimeout: 5 * time.Second})
	out, err := v.Validate(prog, attack, diagnostics.Exponential())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !out.Confirmed {
		t.Fatal("exponential witness not confirmed")
	}
	if !out.Complexity.IsExponential() {
		t.Errorf("complexity = %s, want exponential", out.Complexity)
	}
}

// TestValidate_ConfirmsPolynomial tests degree re-estimation.
func TestValidate_ConfirmsPolynomial(t *testing.T) {
	prog := compile(t, `^a*a*$`)
	attack := diagnostics.NewAttackPattern("", "a", "!", 20)

	v := NewValidator(Options{TrialTimeout: 5 * time.Second, BasePumps: 40})
	out, err := v.Validate(prog, attack, diagnostics.Polynomial(2))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !out.Confirmed {
		t.Fatal("quadratic witness not confirmed")
	}
	if !out.Complexity.IsPolynomial() || out.Complexity.Degree() != 2 {
		t.Errorf("complexity = %s, want O(n^2)", out.Complexity)
	}
}

// TestValidate_RetractsBogusWitness tests that a linear pattern refutes a
// claimed vulnerability.
func TestValidate_RetractsBogusWitness(t *testing.T) {
	prog := compile(t, `^[a-z]+$`)
	attack := diagnostics.NewAttackPattern("", "a", "!", 20)

	v := NewValidator(Options{TrialTimeout: 5 * time.Second})
	out, err := v.Validate(prog, attack, diagnostics.Exponential())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Confirmed {
		t.Error("bogus exponential witness confirmed")
	}

	out, err = v.Validate(prog, attack, diagnostics.Polynomial(2))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.Confirmed {
		t.Error("bogus polynomial witness confirmed")
	}
}
