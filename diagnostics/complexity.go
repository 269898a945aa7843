// Package diagnostics defines the result types produced by a ReDoS check:
// the matching-time complexity class, the structured attack pattern, the
// source hotspot, and the top-level Diagnostics record with its stable
// JSON form.
package diagnostics

import "fmt"

// ComplexityType classifies worst-case matching time.
type ComplexityType uint8

const (
	// ComplexitySafe means matching time is linear in the input length.
	ComplexitySafe ComplexityType = iota

	// ComplexityPolynomial means matching time grows as n^k for some k >= 2.
	ComplexityPolynomial

	// ComplexityExponential means matching time grows as 2^n.
	ComplexityExponential
)

// String returns a human-readable representation of the ComplexityType
func (t ComplexityType) String() string {
	switch t {
	case ComplexitySafe:
		return "safe"
	case ComplexityPolynomial:
		return "polynomial"
	case ComplexityExponential:
		return "exponential"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// Complexity is the worst-case matching-time class of a pattern.
// The zero value is the safe (linear) class.
//
// Complexity values are ordered: Safe < Polynomial(2) < Polynomial(3) < ...
// < Exponential. Use Compare for ordering.
type Complexity struct {
	kind   ComplexityType
	degree int // polynomial degree, 0 unless kind == ComplexityPolynomial
}

// Safe returns the linear complexity class.
func Safe() Complexity {
	return Complexity{kind: ComplexitySafe}
}

// Polynomial returns the polynomial complexity class of the given degree.
// Degrees below 2 are clamped to 2.
func Polynomial(degree int) Complexity {
	if degree < 2 {
		degree = 2
	}
	return Complexity{kind: ComplexityPolynomial, degree: degree}
}

// Exponential returns the exponential complexity class.
func Exponential() Complexity {
	return Complexity{kind: ComplexityExponential}
}

// Type returns the complexity class tag.
func (c Complexity) Type() ComplexityType { return c.kind }

// Degree returns the polynomial degree, or 0 for non-polynomial classes.
func (c Complexity) Degree() int { return c.degree }

// IsSafe returns true for the linear class.
func (c Complexity) IsSafe() bool { return c.kind == ComplexitySafe }

// IsPolynomial returns true for the polynomial class.
func (c Complexity) IsPolynomial() bool { return c.kind == ComplexityPolynomial }

// IsExponential returns true for the exponential class.
func (c Complexity) IsExponential() bool { return c.kind == ComplexityExponential }

// IsVulnerable returns true for any super-linear class.
func (c Complexity) IsVulnerable() bool { return c.kind != ComplexitySafe }

// Compare orders complexity classes: Safe < Poly(2) < Poly(3) < ... < Exp.
// Returns -1, 0 or 1.
func (c Complexity) Compare(other Complexity) int {
	if c.kind != other.kind {
		if c.kind < other.kind {
			return -1
		}
		return 1
	}
	switch {
	case c.degree < other.degree:
		return -1
	case c.degree > other.degree:
		return 1
	}
	return 0
}

// Summary returns the canonical asymptotic label: "O(n)", "O(n^k)" or "O(2^n)".
func (c Complexity) Summary() string {
	switch c.kind {
	case ComplexityPolynomial:
		return fmt.Sprintf("O(n^%d)", c.degree)
	case ComplexityExponential:
		return "O(2^n)"
	default:
		return "O(n)"
	}
}

// String returns the same label as Summary.
func (c Complexity) String() string { return c.Summary() }
