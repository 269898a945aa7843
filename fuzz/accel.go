package fuzz

import (
	"github.com/coregx/ahocorasick"

	"github.com/coregx/redos/parser"
)

// AccelMode controls the required-literal prescreen.
type AccelMode uint8

const (
	// AccelAuto enables the prescreen whenever the pattern has mandatory
	// literal factors.
	AccelAuto AccelMode = iota

	// AccelOn forces the prescreen.
	AccelOn

	// AccelOff disables it.
	AccelOff
)

// minAccelLiteral is the minimum mandatory-literal length worth
// prescreening for; single characters reject too little.
const minAccelLiteral = 2

// prescreener skips candidate inputs that cannot contain a mandatory
// literal factor of the pattern: the VM would reject them after a shallow
// scan anyway, so running it three times per candidate is wasted budget.
type prescreener struct {
	auto *ahocorasick.Automaton
}

// newPrescreener extracts mandatory literal runs from the AST and builds
// the matcher. Returns nil when the mode disables it or the pattern has
// no usable literals.
func newPrescreener(p *parser.Pattern, mode AccelMode) *prescreener {
	if mode == AccelOff {
		return nil
	}
	runs := mandatoryLiterals(p.Root)
	var usable [][]byte
	for _, r := range runs {
		if len(r) >= minAccelLiteral {
			usable = append(usable, []byte(r))
		}
	}
	if len(usable) == 0 {
		return nil
	}
	builder := ahocorasick.NewBuilder()
	for _, lit := range usable {
		builder.AddPattern(lit)
	}
	auto, err := builder.Build()
	if err != nil {
		return nil
	}
	return &prescreener{auto: auto}
}

// admits reports whether the candidate input is worth running: it must
// contain at least one mandatory literal.
func (ps *prescreener) admits(input string) bool {
	if ps == nil {
		return true
	}
	return ps.auto.IsMatch([]byte(input))
}

// mandatoryLiterals collects the maximal literal runs every match must
// contain: literals in concatenation positions that are not optional and
// not one alternative among several.
func mandatoryLiterals(n parser.Node) []string {
	var runs []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			runs = append(runs, string(cur))
			cur = nil
		}
	}
	var walk func(n parser.Node)
	walk = func(n parser.Node) {
		switch t := n.(type) {
		case *parser.Literal:
			cur = append(cur, t.R)
		case *parser.Concat:
			for _, c := range t.Nodes {
				walk(c)
			}
		case *parser.Group:
			walk(t.Node)
		case *parser.Repeat:
			flush()
			if t.Min >= 1 {
				// The body occurs at least once.
				walk(t.Node)
			}
			flush()
		default:
			// Alternations, classes, anchors and assertions break the run.
			flush()
		}
	}
	walk(n)
	flush()
	return runs
}
