package automaton

import (
	"sort"
	"strconv"
	"strings"

	"github.com/coregx/redos/internal/sparse"
	"github.com/coregx/redos/parser"
)

// lookaheadDFA is the determinized reverse of an OrderedNFA. Each DFA
// state is a subset of OrderedNFA states; running it forward over the
// input tracks which states could still complete a match.
type lookaheadDFA struct {
	subsets   [][]int // sorted member lists
	initial   int
	accepting []bool  // subset contains the OrderedNFA initial
	live      []bool  // some accepting DFA state is reachable
	next      [][]int // next[d][sym] = successor, -1 when empty
}

// buildLookaheadDFA reverses the OrderedNFA and determinizes it by subset
// construction, starting from the accepting set. maxStates bounds the
// number of DFA states.
func buildLookaheadDFA(n *OrderedNFA, maxStates int) (*lookaheadDFA, error) {
	numSyms := len(n.Alphabet())

	// Reverse adjacency: rev[sym][to] = ordered source list.
	rev := make([][][]int, numSyms)
	for s := range rev {
		rev[s] = make([][]int, n.Size())
	}
	for q := 0; q < n.Size(); q++ {
		for _, e := range n.Edges(q) {
			rev[e.Sym][e.To] = append(rev[e.Sym][e.To], q)
		}
	}

	var init []int
	for q := 0; q < n.Size(); q++ {
		if n.Accepting(q) {
			init = append(init, q)
		}
	}

	d := &lookaheadDFA{}
	index := make(map[string]int)
	intern := func(subset []int) int {
		k := subsetKey(subset)
		if id, ok := index[k]; ok {
			return id
		}
		id := len(d.subsets)
		index[k] = id
		d.subsets = append(d.subsets, subset)
		d.next = append(d.next, nil)
		return id
	}

	d.initial = intern(init)
	seen := sparse.NewSparseSet(uint32(n.Size() + 1))

	for work := []int{d.initial}; len(work) > 0; {
		cur := work[0]
		work = work[1:]
		if d.next[cur] != nil {
			continue
		}
		d.next[cur] = make([]int, numSyms)
		for sym := 0; sym < numSyms; sym++ {
			seen.Clear()
			var succ []int
			for _, q := range d.subsets[cur] {
				for _, p := range rev[sym][q] {
					if !seen.Contains(uint32(p)) {
						seen.Insert(uint32(p))
						succ = append(succ, p)
					}
				}
			}
			if len(succ) == 0 {
				d.next[cur][sym] = -1
				continue
			}
			sort.Ints(succ)
			id := intern(succ)
			if len(d.subsets) > maxStates {
				return nil, ErrNFATooLarge
			}
			d.next[cur][sym] = id
			if d.next[id] == nil {
				work = append(work, id)
			}
		}
	}

	// Accepting: the subset can complete a reverse run, i.e. it contains
	// the forward initial state.
	d.accepting = make([]bool, len(d.subsets))
	for i, subset := range d.subsets {
		for _, q := range subset {
			if q == n.Initial() {
				d.accepting[i] = true
				break
			}
		}
	}

	d.computeLive()
	return d, nil
}

// computeLive marks DFA states from which an accepting DFA state is
// reachable. Transitions into non-live states are dead ends: no suffix
// completes a match from there.
func (d *lookaheadDFA) computeLive() {
	// Reverse DFA edges, then BFS from the accepting states.
	back := make([][]int, len(d.subsets))
	for from, row := range d.next {
		for _, to := range row {
			if to >= 0 {
				back[to] = append(back[to], from)
			}
		}
	}
	d.live = make([]bool, len(d.subsets))
	var queue []int
	for i := range d.subsets {
		if d.accepting[i] {
			d.live[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range back[cur] {
			if !d.live[p] {
				d.live[p] = true
				queue = append(queue, p)
			}
		}
	}
}

func subsetKey(subset []int) string {
	var sb strings.Builder
	for _, q := range subset {
		sb.WriteString(strconv.Itoa(q))
		sb.WriteByte(',')
	}
	return sb.String()
}

// ProdState pairs an OrderedNFA state with a look-ahead DFA state.
type ProdState struct {
	Q, D int
}

// ProdEdge is one ordered NFAwLA transition. Duplicates inherited from the
// OrderedNFA are preserved.
type ProdEdge struct {
	Sym int
	To  int
}

// NFAwLA is the look-ahead augmented NFA: the product of the OrderedNFA
// with the determinized reverse. Transitions whose look-ahead component is
// dead (cannot reach acceptance) are pruned, so ambiguity on such branches
// is never reported. Ambiguity on live branches, as in (a*)*, is kept; the
// exploitability filter decides whether it matters.
type NFAwLA struct {
	nfa      *OrderedNFA
	dfa      *lookaheadDFA
	states   []ProdState
	index    map[ProdState]int
	edges    [][]ProdEdge
	initial  int
	numEdges int
}

// BuildNFAwLA constructs the pruned product, bounded by maxSize states and
// transitions.
func BuildNFAwLA(n *OrderedNFA, maxSize int) (*NFAwLA, error) {
	if maxSize <= 0 {
		maxSize = 100000
	}
	dfa, err := buildLookaheadDFA(n, maxSize)
	if err != nil {
		return nil, err
	}

	w := &NFAwLA{
		nfa:   n,
		dfa:   dfa,
		index: make(map[ProdState]int),
	}
	intern := func(s ProdState) int {
		if id, ok := w.index[s]; ok {
			return id
		}
		id := len(w.states)
		w.index[s] = id
		w.states = append(w.states, s)
		w.edges = append(w.edges, nil)
		return id
	}

	w.initial = intern(ProdState{Q: n.Initial(), D: dfa.initial})
	for work := []int{w.initial}; len(work) > 0; {
		cur := work[0]
		work = work[1:]
		if w.edges[cur] != nil {
			continue
		}
		w.edges[cur] = []ProdEdge{}
		src := w.states[cur]
		for _, e := range n.Edges(src.Q) {
			d2 := dfa.next[src.D][e.Sym]
			if d2 < 0 || !dfa.live[d2] {
				continue // dead look-ahead: this branch can never accept
			}
			to := intern(ProdState{Q: e.To, D: d2})
			w.edges[cur] = append(w.edges[cur], ProdEdge{Sym: e.Sym, To: to})
			w.numEdges++
			if len(w.states) > maxSize || w.numEdges > maxSize {
				return nil, ErrNFATooLarge
			}
			if w.edges[to] == nil {
				work = append(work, to)
			}
		}
	}
	return w, nil
}

// Size returns the number of reachable product states.
func (w *NFAwLA) Size() int { return len(w.states) }

// Initial returns the initial product state.
func (w *NFAwLA) Initial() int { return w.initial }

// Edges returns the ordered outgoing edges of product state id.
func (w *NFAwLA) Edges(id int) []ProdEdge { return w.edges[id] }

// State returns the (q, D) pair behind a product state id.
func (w *NFAwLA) State(id int) ProdState { return w.states[id] }

// SymbolSet returns the character set of an elementary symbol.
func (w *NFAwLA) SymbolSet(sym int) *parser.CharSet { return w.nfa.Alphabet()[sym] }

// SpanOf returns the source span of the OrderedNFA state behind id.
func (w *NFAwLA) SpanOf(id int) parser.Span { return w.nfa.SpanOf(w.states[id].Q) }
