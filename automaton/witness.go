package automaton

import (
	"strings"

	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/parser"
)

// suffixCandidates are tried in order when picking the character that
// forces the final match failure.
var suffixCandidates = []rune{'!', '#', '~', '\x00', '\n'}

// Witness turns ambiguity evidence into a structured attack pattern and a
// hotspot over the original source.
type Witness struct {
	w   *NFAwLA
	pat *parser.Pattern
	amb *Ambiguity
}

// NewWitness pairs ambiguity evidence with its automaton and pattern.
func NewWitness(w *NFAwLA, pat *parser.Pattern, amb *Ambiguity) *Witness {
	return &Witness{w: w, pat: pat, amb: amb}
}

// AttackPattern builds the (prefix, pump, suffix) triple. The repeat count
// is chosen so the default attack string stays within maxLen.
func (wit *Witness) AttackPattern(maxLen, minRepeat int) *diagnostics.AttackPattern {
	pump := wit.pumpString()
	prefix := wit.prefixString(pump)
	suffix := wit.suffixString(pump)

	repeat := minRepeat
	if repeat < 1 {
		repeat = 20
	}
	if len(pump) > 0 && maxLen > 0 {
		budget := maxLen - len(prefix) - len(suffix)
		if budget < len(pump) {
			budget = len(pump)
		}
		max := budget / len(pump)
		if repeat > max {
			repeat = max
		}
		if repeat < 1 {
			repeat = 1
		}
	}
	return diagnostics.NewAttackPattern(prefix, pump, suffix, repeat)
}

// pumpString renders the pump symbol sequence as sample characters.
// For IDA the pump prefers a loop character distinct from the bridging
// symbol, so the input keeps every loop busy without completing a match.
func (wit *Witness) pumpString() string {
	amb := wit.amb
	if amb.Kind == AmbiguityIDA && amb.BridgeSym >= 0 {
		bridge := wit.w.SymbolSet(amb.BridgeSym)
		rest := amb.LoopSet.Intersect(bridge.Negate())
		if !rest.IsEmpty() {
			return string(rest.Sample())
		}
		return string(bridge.Sample())
	}
	var sb strings.Builder
	for _, sym := range amb.PumpSyms {
		sb.WriteRune(wit.w.SymbolSet(sym).Sample())
	}
	return sb.String()
}

// prefixString finds a shortest string from the NFAwLA initial state to
// the ambiguous region, then strips trailing pump repetitions: those are
// better spent inside the pump.
func (wit *Witness) prefixString(pump string) string {
	target := make(map[int]bool, len(wit.amb.States))
	for _, s := range wit.amb.States {
		target[s] = true
	}
	type crumb struct {
		prev, sym int
	}
	prev := map[int]crumb{wit.w.Initial(): {prev: -1, sym: -1}}
	queue := []int{wit.w.Initial()}
	found := -1
	if target[wit.w.Initial()] {
		found = wit.w.Initial()
	}
	for len(queue) > 0 && found < 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range wit.w.Edges(cur) {
			if _, ok := prev[e.To]; ok {
				continue
			}
			prev[e.To] = crumb{prev: cur, sym: e.Sym}
			if target[e.To] {
				found = e.To
				break
			}
			queue = append(queue, e.To)
		}
	}
	if found < 0 {
		return ""
	}
	var runes []rune
	for at := found; prev[at].prev >= 0; at = prev[at].prev {
		runes = append(runes, wit.w.SymbolSet(prev[at].sym).Sample())
	}
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	s := string(runes)
	if pump != "" {
		for strings.HasSuffix(s, pump) {
			s = s[:len(s)-len(pump)]
		}
	}
	return s
}

// suffixString picks the failing tail. For IDA with a distinct pump the
// bridging character itself is the right tail: it forces partial progress
// through the chain on every retry. Otherwise a character outside the
// loop alphabet (and outside the continuation's first set) guarantees the
// final match attempt fails.
func (wit *Witness) suffixString(pump string) string {
	amb := wit.amb
	if amb.Kind == AmbiguityIDA && amb.BridgeSym >= 0 {
		bridge := wit.w.SymbolSet(amb.BridgeSym)
		if pump != "" && !bridge.Contains([]rune(pump)[0]) {
			return string(bridge.Sample())
		}
	}
	contFirst := continuationFirstSet(wit.pat.Root)
	for _, c := range suffixCandidates {
		if amb.LoopSet.Contains(c) {
			continue
		}
		if contFirst != nil && contFirst.Contains(c) {
			continue
		}
		return string(c)
	}
	for _, c := range suffixCandidates {
		if contFirst == nil || !contFirst.Contains(c) {
			return string(c)
		}
	}
	return "!"
}

// Hotspot returns the union of the source spans carried by the states of
// the ambiguity cycle, falling back to the whole pattern.
func (wit *Witness) Hotspot() *diagnostics.Hotspot {
	have := false
	var union parser.Span
	for _, s := range wit.amb.States {
		sp := wit.w.SpanOf(s)
		if sp.End <= sp.Start {
			continue
		}
		if !have {
			union = sp
			have = true
		} else {
			union = union.Union(sp)
		}
	}
	if !have {
		return diagnostics.NewHotspot(wit.pat.Source, 0, len(wit.pat.Source))
	}
	return diagnostics.NewHotspot(wit.pat.Source, union.Start, union.End)
}

// continuationFirstSet computes the set of characters that can begin the
// mandatory content following a repetition, or nil when there is none.
func continuationFirstSet(root parser.Node) *parser.CharSet {
	var result *parser.CharSet
	var walk func(n parser.Node)
	walk = func(n parser.Node) {
		switch t := n.(type) {
		case *parser.Concat:
			sawRepeat := false
			for _, c := range t.Nodes {
				if sawRepeat {
					if fs := firstSet(c); fs != nil && !fs.IsEmpty() {
						if result == nil {
							result = fs
						} else {
							result = result.Union(fs)
						}
						break
					}
				}
				if isRepeatLike(c) {
					sawRepeat = true
				}
				walk(c)
			}
		case *parser.Alt:
			for _, c := range t.Nodes {
				walk(c)
			}
		case *parser.Group:
			walk(t.Node)
		case *parser.Repeat:
			walk(t.Node)
		}
	}
	walk(root)
	return result
}

// isRepeatLike reports whether the node is a repetition, possibly behind
// grouping.
func isRepeatLike(n parser.Node) bool {
	switch t := n.(type) {
	case *parser.Repeat:
		return true
	case *parser.Group:
		return isRepeatLike(t.Node)
	}
	return false
}

// firstSet returns the characters that can start a match of n, or nil for
// zero-width nodes.
func firstSet(n parser.Node) *parser.CharSet {
	switch t := n.(type) {
	case *parser.Literal:
		return parser.SingleChar(t.R)
	case *parser.CharClass:
		return t.Set
	case *parser.Dot:
		return t.CharSet()
	case *parser.Concat:
		for _, c := range t.Nodes {
			if fs := firstSet(c); fs != nil {
				return fs
			}
		}
		return nil
	case *parser.Alt:
		var out *parser.CharSet
		for _, c := range t.Nodes {
			if fs := firstSet(c); fs != nil {
				if out == nil {
					out = fs
				} else {
					out = out.Union(fs)
				}
			}
		}
		return out
	case *parser.Group:
		return firstSet(t.Node)
	case *parser.Repeat:
		if t.Min > 0 {
			return firstSet(t.Node)
		}
		return nil
	}
	return nil
}
