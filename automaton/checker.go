package automaton

import (
	"time"

	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/parser"
)

// MatchMode controls how the exploitability filter treats implicit
// trailing context.
type MatchMode uint8

const (
	// MatchModeAuto admits a candidate when the pattern has a right
	// anchor or mandatory content follows the ambiguous region.
	MatchModeAuto MatchMode = iota

	// MatchModeFull assumes the engine must match the whole input, so
	// every candidate is exploitable.
	MatchModeFull

	// MatchModePartial requires both the anchor and the continuation
	// before admitting a candidate.
	MatchModePartial
)

// Options bound one automaton analysis.
type Options struct {
	// MaxNFASize caps states and transitions of every automaton built.
	MaxNFASize int

	// MatchMode selects the exploitability rule.
	MatchMode MatchMode

	// MultilineEndAnchors makes line-end $ under the multiline flag count
	// as a right anchor for exploitability.
	MultilineEndAnchors bool

	// MaxAttackLength caps the generated attack string.
	MaxAttackLength int

	// AttackRepeat is the default pump count of generated attacks.
	AttackRepeat int

	// Deadline aborts the analysis when exceeded. Zero means no deadline.
	Deadline time.Time
}

// Result is the outcome of one automaton analysis.
type Result struct {
	Complexity diagnostics.Complexity
	Attack     *diagnostics.AttackPattern
	Hotspot    *diagnostics.Hotspot
}

// Checker runs the full automaton pipeline for one pattern: ε-NFA,
// OrderedNFA, NFAwLA, SCC ambiguity tests, exploitability filter, witness.
type Checker struct {
	opts Options
}

// NewChecker creates a checker with the given options.
func NewChecker(opts Options) *Checker {
	if opts.MaxNFASize <= 0 {
		opts.MaxNFASize = 100000
	}
	return &Checker{opts: opts}
}

// deadlineExceeded reports whether the analysis deadline passed.
func (c *Checker) deadlineExceeded() bool {
	return !c.opts.Deadline.IsZero() && time.Now().After(c.opts.Deadline)
}

// exploitable applies the §exploitability rule to an ambiguity candidate.
func (c *Checker) exploitable(p *parser.Pattern) bool {
	anchored := parser.HasEndAnchor(p.Root, c.opts.MultilineEndAnchors)
	continues := parser.RequiresContinuation(p.Root)
	switch c.opts.MatchMode {
	case MatchModeFull:
		return true
	case MatchModePartial:
		return anchored && continues
	default:
		return anchored || continues
	}
}

// Check analyzes a parsed pattern. Returns ErrUnsupported for patterns
// outside the automaton fragment and ErrNFATooLarge when a size budget
// trips; the caller falls back to the fuzz path for both.
func (c *Checker) Check(p *parser.Pattern) (*Result, error) {
	eps, err := BuildEpsNFA(p, c.opts.MaxNFASize)
	if err != nil {
		return nil, err
	}

	// Multi-transitions found during ε-elimination survive as duplicated
	// edges in the product, where the SCC analysis confirms the
	// surrounding loop and supplies the witness, so no separate quick
	// path is needed.
	ordered := BuildOrderedNFA(eps)

	if c.deadlineExceeded() {
		return nil, ErrDeadline
	}

	w, err := BuildNFAwLA(ordered, c.opts.MaxNFASize)
	if err != nil {
		return nil, err
	}

	analyzer := newSCCAnalyzer(w)

	if amb := analyzer.checkEDA(); amb != nil {
		if c.exploitable(p) {
			return c.vulnerable(w, p, amb, diagnostics.Exponential()), nil
		}
		return &Result{Complexity: diagnostics.Safe()}, nil
	}

	if c.deadlineExceeded() {
		return nil, ErrDeadline
	}

	if amb := analyzer.checkIDA(); amb != nil {
		if c.exploitable(p) {
			return c.vulnerable(w, p, amb, diagnostics.Polynomial(amb.Degree)), nil
		}
		return &Result{Complexity: diagnostics.Safe()}, nil
	}

	return &Result{Complexity: diagnostics.Safe()}, nil
}

// vulnerable assembles the result for an exploitable ambiguity.
func (c *Checker) vulnerable(w *NFAwLA, p *parser.Pattern, amb *Ambiguity, cpx diagnostics.Complexity) *Result {
	wit := NewWitness(w, p, amb)
	return &Result{
		Complexity: cpx,
		Attack:     wit.AttackPattern(c.opts.MaxAttackLength, c.opts.AttackRepeat),
		Hotspot:    wit.Hotspot(),
	}
}
