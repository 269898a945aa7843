package automaton

import (
	"sort"

	"github.com/coregx/redos/internal/sparse"
	"github.com/coregx/redos/parser"
)

// SymEdge is one ordered transition of the OrderedNFA, labelled by an
// index into the elementary alphabet. Duplicate (Sym, To) entries are
// deliberately preserved: they record that the same character transition
// is reachable through multiple ε-paths, the raw material of EDA.
type SymEdge struct {
	Sym int
	To  int
}

// OrderedNFA is an ε-free NFA whose outgoing edges per state carry the
// backtracking priority order inherited from the ε-NFA.
//
// The alphabet is refined into disjoint elementary symbols (split at every
// range endpoint of every label), so that product constructions and subset
// determinization can treat symbols atomically.
type OrderedNFA struct {
	numStates int
	initial   int
	accepting []bool
	alphabet  []*parser.CharSet
	edges     [][]SymEdge
	spans     []parser.Span

	// multiTrans is set when some character transition is reachable from a
	// single state via more than one ε-path. Combined with a surrounding
	// loop this is the quick signal for exponential ambiguity.
	multiTrans bool
}

// Size returns the number of states.
func (n *OrderedNFA) Size() int { return n.numStates }

// Initial returns the initial state.
func (n *OrderedNFA) Initial() int { return n.initial }

// Accepting reports whether q accepts.
func (n *OrderedNFA) Accepting(q int) bool { return n.accepting[q] }

// Alphabet returns the elementary symbol sets.
func (n *OrderedNFA) Alphabet() []*parser.CharSet { return n.alphabet }

// Edges returns the ordered outgoing edges of q.
func (n *OrderedNFA) Edges(q int) []SymEdge { return n.edges[q] }

// SpanOf returns the source span tagged on q.
func (n *OrderedNFA) SpanOf(q int) parser.Span { return n.spans[q] }

// HasMultiTrans reports whether any character transition is reachable via
// multiple ε-paths from the same state.
func (n *OrderedNFA) HasMultiTrans() bool { return n.multiTrans }

// Budgets for the per-state ε-path enumeration. Path signatures longer
// than epsPathMaxLen or more than epsPathMaxVisits signature states are
// not expanded; duplicates found up to that point are still reported.
const (
	epsPathMaxLen    = 20
	epsPathMaxVisits = 4096
)

// BuildOrderedNFA eliminates ε-transitions from the ε-NFA while counting
// the number of distinct ε-paths to every character transition. The count
// is materialized as duplicated edges, and the order of discovery (a
// depth-first walk that expands ε-successors in priority order) preserves
// the greedy tie-break ordering.
func BuildOrderedNFA(eps *EpsNFA) *OrderedNFA {
	n := &OrderedNFA{
		numStates: eps.Size(),
		initial:   eps.Initial(),
		accepting: make([]bool, eps.Size()),
		edges:     make([][]SymEdge, eps.Size()),
		spans:     make([]parser.Span, eps.Size()),
	}
	for q := 0; q < eps.Size(); q++ {
		n.spans[q] = eps.SpanOf(q)
	}

	n.alphabet = elementaryAlphabet(eps)
	symsOf := makeSymResolver(n.alphabet)

	closure := sparse.NewSparseSet(uint32(eps.Size()))
	for q := 0; q < eps.Size(); q++ {
		// Accepting iff the ε-closure reaches the accept state.
		closure.Clear()
		epsClosure(eps, q, closure)
		if closure.Contains(uint32(eps.Accept())) {
			n.accepting[q] = true
		}

		n.edges[q] = charTransitions(eps, q, symsOf, &n.multiTrans)
	}
	return n
}

// epsPathItem is one entry of the ε-path BFS queue: the current state and
// the priority signature of the ε-edges taken to reach it.
type epsPathItem struct {
	state int
	sig   string
}

// symKey identifies a character transition by symbol and target.
type symKey struct {
	sym, to int
}

// charTransitions enumerates the character transitions reachable from q
// through ε-paths. Discovery walks the ordered ε-closure, so the edge
// list is complete and keeps the greedy priority order; a separate
// bounded path enumeration marks transitions reachable via more than one
// ε-path by duplicating them.
func charTransitions(eps *EpsNFA, q int, symsOf func(*parser.CharSet) []int, multiTrans *bool) []SymEdge {
	var order []symKey
	seen := make(map[symKey]bool)
	for _, r := range orderedClosure(eps, q) {
		for _, e := range eps.Edges(r) {
			if e.Kind != EdgeChar {
				continue
			}
			for _, sym := range symsOf(e.Label) {
				k := symKey{sym: sym, to: e.To}
				if !seen[k] {
					seen[k] = true
					order = append(order, k)
				}
			}
		}
	}

	counts := epsPathCounts(eps, q, symsOf)

	var out []SymEdge
	for _, k := range order {
		c := counts[k]
		if c < 1 {
			c = 1
		}
		if c > 1 {
			*multiTrans = true
			// Two copies are enough evidence; deeper multiplicities only
			// repeat it.
			c = 2
		}
		for i := 0; i < c; i++ {
			out = append(out, SymEdge{Sym: k.sym, To: k.to})
		}
	}
	return out
}

// orderedClosure returns the ε-closure of q in priority preorder: states
// reached through earlier ε-edges come first.
func orderedClosure(eps *EpsNFA, q int) []int {
	var out []int
	visited := make([]bool, eps.Size())
	var walk func(s int)
	walk = func(s int) {
		if visited[s] {
			return
		}
		visited[s] = true
		out = append(out, s)
		for _, e := range eps.Edges(s) {
			if e.Kind == EdgeEpsilon {
				walk(e.To)
			}
		}
	}
	walk(q)
	return out
}

// epsPathCounts counts distinct ε-paths from q to every character
// transition, bounded by the signature budgets. When the budget trips the
// counts are a lower bound, never missing a transition (discovery is done
// separately).
func epsPathCounts(eps *EpsNFA, q int, symsOf func(*parser.CharSet) []int) map[symKey]int {
	counts := make(map[symKey]int)
	queue := []epsPathItem{{state: q}}
	visited := make(map[epsPathItem]bool)
	visits := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if visited[item] {
			continue
		}
		visited[item] = true
		visits++
		if visits > epsPathMaxVisits {
			break
		}

		for i, e := range eps.Edges(item.state) {
			switch e.Kind {
			case EdgeChar:
				for _, sym := range symsOf(e.Label) {
					counts[symKey{sym: sym, to: e.To}]++
				}
			case EdgeEpsilon:
				if len(item.sig) >= epsPathMaxLen {
					continue
				}
				queue = append(queue, epsPathItem{
					state: e.To,
					sig:   item.sig + string(rune('0'+i)),
				})
			}
		}
	}
	return counts
}

// epsClosure accumulates the ε-closure of q into set.
func epsClosure(eps *EpsNFA, q int, set *sparse.SparseSet) {
	stack := []int{q}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if set.Contains(uint32(s)) {
			continue
		}
		set.Insert(uint32(s))
		for _, e := range eps.Edges(s) {
			if e.Kind == EdgeEpsilon && !set.Contains(uint32(e.To)) {
				stack = append(stack, e.To)
			}
		}
	}
}

// elementaryAlphabet splits the labels of all character edges into
// disjoint elementary intervals.
func elementaryAlphabet(eps *EpsNFA) []*parser.CharSet {
	boundSet := make(map[rune]bool)
	var labels []*parser.CharSet
	for q := 0; q < eps.Size(); q++ {
		for _, e := range eps.Edges(q) {
			if e.Kind != EdgeChar {
				continue
			}
			labels = append(labels, e.Label)
			for _, r := range e.Label.Ranges {
				boundSet[r.Lo] = true
				boundSet[r.Hi+1] = true
			}
		}
	}
	bounds := make([]rune, 0, len(boundSet))
	for b := range boundSet {
		bounds = append(bounds, b)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i] < bounds[j] })

	covered := func(r rune) bool {
		for _, l := range labels {
			if l.Contains(r) {
				return true
			}
		}
		return false
	}

	var alphabet []*parser.CharSet
	for i := 0; i+1 <= len(bounds)-1; i++ {
		lo, hi := bounds[i], bounds[i+1]-1
		if lo > hi || !covered(lo) {
			continue
		}
		alphabet = append(alphabet, parser.NewCharSet(parser.RuneRange{Lo: lo, Hi: hi}))
	}
	return alphabet
}

// makeSymResolver returns a memoized mapping from a label set to the
// elementary symbols it covers.
func makeSymResolver(alphabet []*parser.CharSet) func(*parser.CharSet) []int {
	cache := make(map[string][]int)
	return func(label *parser.CharSet) []int {
		k := label.Key()
		if syms, ok := cache[k]; ok {
			return syms
		}
		var syms []int
		for i, sym := range alphabet {
			// Elementary symbols never straddle a label boundary, so
			// membership of the low endpoint decides the whole symbol.
			if label.Contains(sym.Ranges[0].Lo) {
				syms = append(syms, i)
			}
		}
		cache[k] = syms
		return syms
	}
}
