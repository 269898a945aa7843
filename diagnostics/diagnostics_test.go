package diagnostics

import (
	"encoding/json"
	"reflect"
	"testing"
)

// TestComplexity_Ordering tests the Safe < Poly(k) < Exp ordering.
func TestComplexity_Ordering(t *testing.T) {
	ordered := []Complexity{
		Safe(),
		Polynomial(2),
		Polynomial(3),
		Polynomial(7),
		Exponential(),
	}
	for i := range ordered {
		for j := range ordered {
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got := ordered[i].Compare(ordered[j]); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

// TestComplexity_Summary tests the canonical labels.
func TestComplexity_Summary(t *testing.T) {
	tests := []struct {
		c    Complexity
		want string
	}{
		{Safe(), "O(n)"},
		{Polynomial(2), "O(n^2)"},
		{Polynomial(5), "O(n^5)"},
		{Polynomial(1), "O(n^2)"}, // degree clamps to 2
		{Exponential(), "O(2^n)"},
	}
	for _, tt := range tests {
		if got := tt.c.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

// TestAttackPattern_Build tests attack string assembly.
func TestAttackPattern_Build(t *testing.T) {
	a := NewAttackPattern("x", "ab", "!", 3)
	if got := a.Build(2); got != "xabab!" {
		t.Errorf("Build(2) = %q, want %q", got, "xabab!")
	}
	if got := a.String(); got != "xababab!" {
		t.Errorf("String() = %q, want %q", got, "xababab!")
	}
	if got := a.Build(0); got != "x!" {
		t.Errorf("Build(0) = %q, want %q", got, "x!")
	}
	if got := a.Len(10); got != 2+2*10 {
		t.Errorf("Len(10) = %d, want %d", got, 22)
	}
	if a.Base != 2 {
		t.Errorf("Base = %d, want 2", a.Base)
	}
}

// TestDiagnostics_JSONRoundTrip tests that serialization preserves every
// observable field.
func TestDiagnostics_JSONRoundTrip(t *testing.T) {
	cpx := Exponential()
	records := []*Diagnostics{
		NewSafe("^a+$", "u", "automaton"),
		NewVulnerable("^(a+)+$", "iu", "automaton", cpx,
			NewAttackPattern("", "a", "!", 20),
			NewHotspot("^(a+)+$", 1, 6)),
		NewUnknown("(a)\\1", "u", "fuzz", "no witness found within budget"),
		{
			Status:  StatusError,
			Source:  "(",
			Flags:   "u",
			Message: "analysis failed",
			Error:   "unclosed group at offset 0",
		},
	}
	for _, rec := range records {
		t.Run(rec.Status.String(), func(t *testing.T) {
			data, err := json.Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var back Diagnostics
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if !reflect.DeepEqual(rec, &back) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", &back, rec)
			}
		})
	}
}

// TestDiagnostics_JSONFields tests the stable wire field names.
func TestDiagnostics_JSONFields(t *testing.T) {
	rec := NewVulnerable("^(a+)+$", "u", "automaton", Exponential(),
		NewAttackPattern("", "a", "!", 3), NewHotspot("^(a+)+$", 1, 6))
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"status", "source", "flags", "complexity", "attack", "hotspot", "checker", "message", "error"} {
		if _, ok := m[field]; !ok {
			t.Errorf("missing field %q", field)
		}
	}
	if m["status"] != "vulnerable" {
		t.Errorf("status = %v, want vulnerable", m["status"])
	}
	cpx := m["complexity"].(map[string]interface{})
	if cpx["summary"] != "O(2^n)" {
		t.Errorf("summary = %v, want O(2^n)", cpx["summary"])
	}
	if cpx["degree"] != nil {
		t.Errorf("exponential degree = %v, want null", cpx["degree"])
	}
	attack := m["attack"].(map[string]interface{})
	if attack["string"] != "aaa!" {
		t.Errorf("attack string = %v, want aaa!", attack["string"])
	}
}
