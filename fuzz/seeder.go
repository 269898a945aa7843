// Package fuzz implements the dynamic analysis path of the ReDoS checker:
// it derives seed inputs from the pattern AST, mutates them, and observes
// step-count growth in the VM at increasing pump lengths. It is the
// fallback for patterns outside the automaton fragment (backreferences,
// look-around, oversize NFA) and can also validate automaton verdicts.
package fuzz

import (
	"github.com/coregx/redos/parser"
)

// SeederKind selects the seed derivation strategy.
type SeederKind uint8

const (
	// SeederStatic derives a fixed seed set from the AST shape.
	SeederStatic SeederKind = iota

	// SeederDynamic extends the static set with pumped expansions of
	// every repetition body.
	SeederDynamic
)

// seedLimit caps the number of sample strings kept per AST node while
// deriving seeds, to keep the cross products small.
const seedLimit = 8

// Seeds derives candidate pump strings from the pattern.
func Seeds(p *parser.Pattern, kind SeederKind) []string {
	samples := nodeSamples(p.Root, seedLimit)
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range samples {
		add(s)
	}
	// Repetition bodies are the prime pump candidates: ambiguity lives in
	// loops, so each loop body sample is seeded on its own.
	parser.Walk(p.Root, func(n parser.Node) bool {
		r, ok := n.(*parser.Repeat)
		if !ok {
			return true
		}
		for _, body := range nodeSamples(r.Node, 4) {
			add(body)
			if kind == SeederDynamic {
				add(body + body)
				add(body + body + body + body)
			}
		}
		return true
	})
	return out
}

// CharPool collects one sample character per literal and class in the
// pattern; the mutator draws replacement characters from it.
func CharPool(p *parser.Pattern) []rune {
	seen := make(map[rune]bool)
	var pool []rune
	add := func(r rune) {
		if r >= 0 && !seen[r] {
			seen[r] = true
			pool = append(pool, r)
		}
	}
	parser.Walk(p.Root, func(n parser.Node) bool {
		switch t := n.(type) {
		case *parser.Literal:
			add(t.R)
		case *parser.CharClass:
			add(t.Set.Sample())
			// The complement matters too: failure tails come from outside
			// the class.
			if neg := t.Set.Negate(); !neg.IsEmpty() {
				add(neg.Sample())
			}
		case *parser.Dot:
			add('a')
		}
		return true
	})
	if len(pool) == 0 {
		pool = []rune{'a'}
	}
	return pool
}

// nodeSamples returns up to limit short strings matching (or nearly
// matching) the node.
func nodeSamples(n parser.Node, limit int) []string {
	var out []string
	switch t := n.(type) {
	case *parser.Literal:
		out = []string{string(t.R)}

	case *parser.CharClass:
		out = []string{string(t.Set.Sample())}

	case *parser.Dot:
		out = []string{"a"}

	case *parser.Anchor, *parser.Lookaround, *parser.Backref:
		out = []string{""}

	case *parser.Concat:
		out = []string{""}
		for _, c := range t.Nodes {
			out = cross(out, nodeSamples(c, limit), limit)
		}

	case *parser.Alt:
		for _, c := range t.Nodes {
			out = append(out, nodeSamples(c, limit)...)
			if len(out) >= limit {
				out = out[:limit]
				break
			}
		}

	case *parser.Group:
		out = nodeSamples(t.Node, limit)

	case *parser.Repeat:
		// Expansions at counts 0, 1, min and min+1 probe the boundary
		// behavior of the quantifier.
		body := nodeSamples(t.Node, 2)
		counts := []int{0, 1, t.Min, t.Min + 1}
		seen := make(map[int]bool)
		for _, k := range counts {
			if k < 0 || seen[k] {
				continue
			}
			if t.Max >= 0 && k > t.Max {
				continue
			}
			seen[k] = true
			for _, b := range body {
				out = append(out, repeat(b, k))
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func cross(left, right []string, limit int) []string {
	var out []string
	for _, l := range left {
		for _, r := range right {
			out = append(out, l+r)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
