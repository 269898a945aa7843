package automaton

import (
	"sort"

	"github.com/coregx/redos/parser"
)

// sccResult is the Tarjan output over an integer-indexed graph.
type sccResult struct {
	comps  [][]int
	compOf []int
}

// tarjan computes strongly connected components iteratively. Components
// are emitted in reverse topological order, as usual for Tarjan.
func tarjan(numStates int, succ func(int) []int) *sccResult {
	const undef = -1
	index := make([]int, numStates)
	lowlink := make([]int, numStates)
	onStack := make([]bool, numStates)
	for i := range index {
		index[i] = undef
	}
	res := &sccResult{compOf: make([]int, numStates)}
	var stack []int
	counter := 0

	type frame struct {
		v    int
		succ []int
		next int
	}

	for root := 0; root < numStates; root++ {
		if index[root] != undef {
			continue
		}
		callStack := []frame{{v: root, succ: succ(root)}}
		index[root] = counter
		lowlink[root] = counter
		counter++
		stack = append(stack, root)
		onStack[root] = true

		for len(callStack) > 0 {
			f := &callStack[len(callStack)-1]
			if f.next < len(f.succ) {
				wdt := f.succ[f.next]
				f.next++
				if index[wdt] == undef {
					index[wdt] = counter
					lowlink[wdt] = counter
					counter++
					stack = append(stack, wdt)
					onStack[wdt] = true
					callStack = append(callStack, frame{v: wdt, succ: succ(wdt)})
				} else if onStack[wdt] {
					if index[wdt] < lowlink[f.v] {
						lowlink[f.v] = index[wdt]
					}
				}
				continue
			}
			// Pop the frame, emit a component when v is a root.
			v := f.v
			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := &callStack[len(callStack)-1]
				if lowlink[v] < lowlink[parent.v] {
					lowlink[parent.v] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var comp []int
				for {
					wd := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[wd] = false
					comp = append(comp, wd)
					res.compOf[wd] = len(res.comps)
					if wd == v {
						break
					}
				}
				res.comps = append(res.comps, comp)
			}
		}
	}
	return res
}

// AmbiguityKind distinguishes the two ambiguity classes.
type AmbiguityKind uint8

const (
	// AmbiguityEDA is exponential degree of ambiguity.
	AmbiguityEDA AmbiguityKind = iota

	// AmbiguityIDA is polynomial degree of ambiguity.
	AmbiguityIDA
)

// Ambiguity is the evidence produced by the SCC analysis: where the
// ambiguity lives and which word pumps it.
type Ambiguity struct {
	Kind AmbiguityKind

	// Degree is the polynomial degree for IDA (>= 2); unset for EDA.
	Degree int

	// PumpSyms is the symbol sequence of the pump word.
	PumpSyms []int

	// States are the product states participating in the ambiguous
	// region, used for hotspot reporting.
	States []int

	// LoopSet is the union of the symbol sets looping in the ambiguous
	// region; the witness generator picks pump and suffix characters
	// relative to it.
	LoopSet *parser.CharSet

	// BridgeSym is the chaining symbol for IDA, -1 for EDA.
	BridgeSym int
}

// pairGraphMaxComp caps the component size for the quadratic pair-graph
// EDA test. Larger components fall back to the duplicate-transition
// evidence only.
const pairGraphMaxComp = 250

// sccAnalyzer runs the ambiguity tests over a built NFAwLA.
type sccAnalyzer struct {
	w   *NFAwLA
	scc *sccResult
}

func newSCCAnalyzer(w *NFAwLA) *sccAnalyzer {
	succ := func(v int) []int {
		edges := w.Edges(v)
		out := make([]int, len(edges))
		for i, e := range edges {
			out[i] = e.To
		}
		return out
	}
	return &sccAnalyzer{w: w, scc: tarjan(w.Size(), succ)}
}

// nonTrivial reports whether a component can pump: size >= 2 or a
// self-loop.
func (a *sccAnalyzer) nonTrivial(comp []int) bool {
	if len(comp) >= 2 {
		return true
	}
	v := comp[0]
	for _, e := range a.w.Edges(v) {
		if e.To == v {
			return true
		}
	}
	return false
}

// loopSet returns the union of symbol sets on intra-component edges.
func (a *sccAnalyzer) loopSet(comp []int) *parser.CharSet {
	compIdx := a.scc.compOf[comp[0]]
	set := &parser.CharSet{}
	for _, v := range comp {
		for _, e := range a.w.Edges(v) {
			if a.scc.compOf[e.To] == compIdx {
				set = set.Union(a.w.SymbolSet(e.Sym))
			}
		}
	}
	return set
}

// checkEDA looks for exponential ambiguity: a state inside a cycle from
// which the same word leads back via two distinguishable paths.
func (a *sccAnalyzer) checkEDA() *Ambiguity {
	// Evidence 1: duplicated transitions. The OrderedNFA preserved one
	// edge copy per ε-path, so a duplicate (sym, target) on a cycling
	// state is exactly a multi-transition inside a loop.
	for _, comp := range a.scc.comps {
		if !a.nonTrivial(comp) {
			continue
		}
		for _, v := range comp {
			seen := make(map[ProdEdge]bool)
			for _, e := range a.w.Edges(v) {
				if seen[e] {
					return &Ambiguity{
						Kind:      AmbiguityEDA,
						PumpSyms:  []int{e.Sym},
						States:    comp,
						LoopSet:   a.loopSet(comp),
						BridgeSym: -1,
					}
				}
				seen[e] = true
			}
		}
	}

	// Evidence 2: the pair-graph diamond. Within one component, a
	// diagonal pair (q,q) and an off-diagonal pair (x,y) in the same
	// pair-graph SCC certify two distinct q->q paths spelling one word.
	for _, comp := range a.scc.comps {
		if !a.nonTrivial(comp) || len(comp) > pairGraphMaxComp {
			continue
		}
		if amb := a.checkPairGraph(comp); amb != nil {
			return amb
		}
	}
	return nil
}

// pairNode is a node of the self-product of a component.
type pairNode struct {
	a, b int
}

// pairEdge is an edge of the self-product graph.
type pairEdge struct {
	sym, to int
}

// checkPairGraph runs the G² test on one component.
func (a *sccAnalyzer) checkPairGraph(comp []int) *Ambiguity {
	compIdx := a.scc.compOf[comp[0]]
	inComp := func(v int) bool { return a.scc.compOf[v] == compIdx }

	// Intra-component edges grouped by symbol.
	bySym := make(map[int][][2]int)
	for _, v := range comp {
		for _, e := range a.w.Edges(v) {
			if inComp(e.To) {
				bySym[e.Sym] = append(bySym[e.Sym], [2]int{v, e.To})
			}
		}
	}

	// Enumerate pair nodes and edges.
	nodeIdx := make(map[pairNode]int)
	var nodes []pairNode
	var edges [][]pairEdge
	intern := func(p pairNode) int {
		if id, ok := nodeIdx[p]; ok {
			return id
		}
		id := len(nodes)
		nodeIdx[p] = id
		nodes = append(nodes, p)
		edges = append(edges, nil)
		return id
	}
	for _, v := range comp {
		for _, u := range comp {
			intern(pairNode{v, u})
		}
	}
	syms := make([]int, 0, len(bySym))
	for sym := range bySym {
		syms = append(syms, sym)
	}
	sort.Ints(syms)
	for _, sym := range syms {
		sedges := bySym[sym]
		for _, e1 := range sedges {
			for _, e2 := range sedges {
				from := nodeIdx[pairNode{e1[0], e2[0]}]
				to := nodeIdx[pairNode{e1[1], e2[1]}]
				edges[from] = append(edges[from], pairEdge{sym: sym, to: to})
			}
		}
	}

	psucc := func(v int) []int {
		out := make([]int, len(edges[v]))
		for i, e := range edges[v] {
			out[i] = e.to
		}
		return out
	}
	pscc := tarjan(len(nodes), psucc)

	for _, pcomp := range pscc.comps {
		if len(pcomp) < 2 {
			continue
		}
		diag, off := -1, -1
		for _, id := range pcomp {
			if nodes[id].a == nodes[id].b {
				diag = id
			} else {
				off = id
			}
		}
		if diag < 0 || off < 0 {
			continue
		}
		// Reconstruct the pump word: diagonal -> off-diagonal -> diagonal
		// within the pair-SCC.
		w1 := pairPath(edges, pscc, diag, off)
		w2 := pairPath(edges, pscc, off, diag)
		pump := append(append([]int{}, w1...), w2...)
		if len(pump) == 0 {
			continue
		}
		return &Ambiguity{
			Kind:      AmbiguityEDA,
			PumpSyms:  pump,
			States:    comp,
			LoopSet:   a.loopSet(comp),
			BridgeSym: -1,
		}
	}
	return nil
}

// pairPath finds the symbol sequence of a shortest path between two pair
// nodes staying inside one pair-SCC.
func pairPath(edges [][]pairEdge, pscc *sccResult, from, to int) []int {
	if from == to {
		return nil
	}
	comp := pscc.compOf[from]
	type crumb struct {
		prev, sym int
	}
	prev := make(map[int]crumb)
	prev[from] = crumb{prev: -1}
	queue := []int{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range edges[cur] {
			if pscc.compOf[e.to] != comp {
				continue
			}
			if _, ok := prev[e.to]; ok {
				continue
			}
			prev[e.to] = crumb{prev: cur, sym: e.sym}
			if e.to == to {
				var syms []int
				for at := to; at != from; at = prev[at].prev {
					syms = append(syms, prev[at].sym)
				}
				// Reverse into path order.
				for i, j := 0, len(syms)-1; i < j; i, j = i+1, j-1 {
					syms[i], syms[j] = syms[j], syms[i]
				}
				return syms
			}
			queue = append(queue, e.to)
		}
	}
	return nil
}

// checkIDA looks for polynomial ambiguity: chains of distinct components
// that all loop on a common symbol and are connected by paths on that
// symbol. The polynomial degree is the number of chained loop components
// minus one, clamped to a minimum of 2.
func (a *sccAnalyzer) checkIDA() *Ambiguity {
	w := a.w
	numSyms := len(w.nfa.Alphabet())

	best := 0
	bestSym := -1
	var bestStates []int

	for sym := 0; sym < numSyms; sym++ {
		succ := func(v int) []int {
			var out []int
			for _, e := range w.Edges(v) {
				if e.Sym == sym {
					out = append(out, e.To)
				}
			}
			return out
		}
		sub := tarjan(w.Size(), succ)

		// Mark components that loop on this symbol.
		looping := make([]bool, len(sub.comps))
		for ci, comp := range sub.comps {
			if len(comp) >= 2 {
				looping[ci] = true
				continue
			}
			v := comp[0]
			for _, e := range w.Edges(v) {
				if e.Sym == sym && e.To == v {
					looping[ci] = true
					break
				}
			}
		}

		// Longest chain of looping components over the condensation.
		// Tarjan emits components in reverse topological order, so a
		// single backward sweep computes the DP.
		chain := make([]int, len(sub.comps))
		via := make([]int, len(sub.comps))
		for ci := range sub.comps {
			via[ci] = -1
		}
		for ci := 0; ci < len(sub.comps); ci++ {
			bestSucc := 0
			bestVia := -1
			for _, v := range sub.comps[ci] {
				for _, e := range w.Edges(v) {
					if e.Sym != sym {
						continue
					}
					cj := sub.compOf[e.To]
					if cj == ci {
						continue
					}
					if chain[cj] > bestSucc {
						bestSucc = chain[cj]
						bestVia = cj
					}
				}
			}
			chain[ci] = bestSucc
			via[ci] = bestVia
			if looping[ci] {
				chain[ci]++
			}
		}
		for ci := range sub.comps {
			if chain[ci] > best {
				best = chain[ci]
				bestSym = sym
				bestStates = nil
				for at := ci; at >= 0; at = via[at] {
					if looping[at] {
						bestStates = append(bestStates, sub.comps[at]...)
					}
				}
			}
		}
	}

	if best < 2 {
		return nil
	}
	degree := best - 1
	if degree < 2 {
		degree = 2
	}
	loop := &parser.CharSet{}
	// Union the full-graph loop alphabets of the components the chain
	// passes through, so the witness can pick a pump character that keeps
	// the engine inside the loops without completing a match.
	compSeen := make(map[int]bool)
	for _, v := range bestStates {
		ci := a.scc.compOf[v]
		if compSeen[ci] {
			continue
		}
		compSeen[ci] = true
		comp := a.scc.comps[ci]
		if a.nonTrivial(comp) {
			loop = loop.Union(a.loopSet(comp))
		}
	}
	if loop.IsEmpty() {
		loop = w.SymbolSet(bestSym)
	}
	return &Ambiguity{
		Kind:      AmbiguityIDA,
		Degree:    degree,
		PumpSyms:  []int{bestSym},
		States:    bestStates,
		LoopSet:   loop,
		BridgeSym: bestSym,
	}
}
