package automaton

import (
	"github.com/coregx/redos/parser"
)

// EdgeKind distinguishes silent from consuming ε-NFA transitions.
type EdgeKind uint8

const (
	// EdgeEpsilon is a silent transition.
	EdgeEpsilon EdgeKind = iota

	// EdgeChar consumes one code point from the label set.
	EdgeChar
)

// EpsEdge is one ordered outgoing transition of an ε-NFA state.
// The order of ε-edges encodes greedy priority: earlier edges are
// preferred by a backtracking engine.
type EpsEdge struct {
	Kind  EdgeKind
	Label *parser.CharSet // nil for ε-edges
	To    int
}

// epsState is one arena slot. The span tags the source sub-expression the
// state was built from, so witnesses can report a hotspot.
type epsState struct {
	edges []EpsEdge
	span  parser.Span
}

// EpsNFA is a Thompson-style ε-NFA over an arena of integer states.
type EpsNFA struct {
	states  []epsState
	initial int
	accept  int
}

// Size returns the number of states.
func (n *EpsNFA) Size() int { return len(n.states) }

// Initial returns the initial state.
func (n *EpsNFA) Initial() int { return n.initial }

// Accept returns the accepting state.
func (n *EpsNFA) Accept() int { return n.accept }

// Edges returns the ordered outgoing edges of a state.
func (n *EpsNFA) Edges(q int) []EpsEdge { return n.states[q].edges }

// SpanOf returns the source span the state was built from.
func (n *EpsNFA) SpanOf(q int) parser.Span { return n.states[q].span }

// epsBuilder constructs an EpsNFA from an AST, one fresh state pair per
// node.
type epsBuilder struct {
	nfa       *EpsNFA
	maxStates int
}

// BuildEpsNFA compiles a pattern into an ε-NFA. Returns ErrUnsupported if
// the AST contains backreferences or look-around, and ErrNFATooLarge when
// the state budget is exceeded (bounded repetition is unrolled).
func BuildEpsNFA(p *parser.Pattern, maxStates int) (*EpsNFA, error) {
	if maxStates <= 0 {
		maxStates = 100000
	}
	b := &epsBuilder{nfa: &EpsNFA{}, maxStates: maxStates}
	start, err := b.newState(p.Root.Span())
	if err != nil {
		return nil, err
	}
	accept, err := b.newState(p.Root.Span())
	if err != nil {
		return nil, err
	}
	if err := b.compile(p.Root, start, accept); err != nil {
		return nil, err
	}
	b.nfa.initial = start
	b.nfa.accept = accept
	return b.nfa, nil
}

func (b *epsBuilder) newState(sp parser.Span) (int, error) {
	if len(b.nfa.states) >= b.maxStates {
		return 0, ErrNFATooLarge
	}
	b.nfa.states = append(b.nfa.states, epsState{span: sp})
	return len(b.nfa.states) - 1, nil
}

func (b *epsBuilder) epsilon(from, to int) {
	b.nfa.states[from].edges = append(b.nfa.states[from].edges, EpsEdge{Kind: EdgeEpsilon, To: to})
}

func (b *epsBuilder) char(from, to int, set *parser.CharSet) {
	b.nfa.states[from].edges = append(b.nfa.states[from].edges, EpsEdge{Kind: EdgeChar, Label: set, To: to})
}

// compile wires the sub-automaton for node between entry and exit.
func (b *epsBuilder) compile(n parser.Node, entry, exit int) error {
	switch t := n.(type) {
	case *parser.Literal:
		b.char(entry, exit, parser.SingleChar(t.R))
		return nil

	case *parser.CharClass:
		b.char(entry, exit, t.Set)
		return nil

	case *parser.Dot:
		b.char(entry, exit, t.CharSet())
		return nil

	case *parser.Anchor:
		// Zero-width assertions do not consume input. Anchoring is
		// accounted for by the exploitability filter at the AST level, so
		// the automaton treats them as silent transitions.
		b.epsilon(entry, exit)
		return nil

	case *parser.Concat:
		if len(t.Nodes) == 0 {
			b.epsilon(entry, exit)
			return nil
		}
		cur := entry
		for i, c := range t.Nodes {
			next := exit
			if i < len(t.Nodes)-1 {
				var err error
				next, err = b.newState(c.Span())
				if err != nil {
					return err
				}
			}
			if err := b.compile(c, cur, next); err != nil {
				return err
			}
			cur = next
		}
		return nil

	case *parser.Alt:
		// Ordered ε-edges: the left alternative is emitted first so a
		// backtracking engine privileges it.
		for _, c := range t.Nodes {
			in, err := b.newState(c.Span())
			if err != nil {
				return err
			}
			out, err := b.newState(c.Span())
			if err != nil {
				return err
			}
			b.epsilon(entry, in)
			if err := b.compile(c, in, out); err != nil {
				return err
			}
			b.epsilon(out, exit)
		}
		return nil

	case *parser.Group:
		return b.compile(t.Node, entry, exit)

	case *parser.Repeat:
		return b.compileRepeat(t, entry, exit)

	case *parser.Backref, *parser.Lookaround:
		return ErrUnsupported
	}
	return ErrUnsupported
}

// compileRepeat builds repetition. Unbounded loops use the standard
// Thompson loop; for {n,} the n-th mandatory copy is the loop body itself,
// entered once unconditionally. Bounded repetition {n,m} is unrolled into
// n mandatory copies followed by m-n optional copies.
func (b *epsBuilder) compileRepeat(t *parser.Repeat, entry, exit int) error {
	cur := entry

	// Mandatory copies.
	mandatory := t.Min
	if t.Max < 0 && t.Min > 0 {
		mandatory--
	}
	for i := 0; i < mandatory; i++ {
		last := i == t.Min-1 && t.Max == t.Min
		next := exit
		if !last {
			var err error
			next, err = b.newState(t.Node.Span())
			if err != nil {
				return err
			}
		}
		if err := b.compile(t.Node, cur, next); err != nil {
			return err
		}
		cur = next
	}
	if t.Max == t.Min {
		if t.Min == 0 {
			b.epsilon(entry, exit)
		}
		return nil
	}

	if t.Max < 0 {
		// Unbounded tail: loop state with greedy-ordered ε-edges.
		loop, err := b.newState(t.Node.Span())
		if err != nil {
			return err
		}
		body, err := b.newState(t.Node.Span())
		if err != nil {
			return err
		}
		if t.Min > 0 {
			b.epsilon(cur, body)
		} else {
			b.epsilon(cur, loop)
		}
		if t.Greedy {
			b.epsilon(loop, body)
			b.epsilon(loop, exit)
		} else {
			b.epsilon(loop, exit)
			b.epsilon(loop, body)
		}
		out, err := b.newState(t.Node.Span())
		if err != nil {
			return err
		}
		if err := b.compile(t.Node, body, out); err != nil {
			return err
		}
		b.epsilon(out, loop)
		return nil
	}

	// Optional copies for {n,m}: each may be skipped to the exit.
	for i := t.Min; i < t.Max; i++ {
		in, err := b.newState(t.Node.Span())
		if err != nil {
			return err
		}
		out := exit
		if i < t.Max-1 {
			out, err = b.newState(t.Node.Span())
			if err != nil {
				return err
			}
		}
		if t.Greedy {
			b.epsilon(cur, in)
			b.epsilon(cur, exit)
		} else {
			b.epsilon(cur, exit)
			b.epsilon(cur, in)
		}
		if err := b.compile(t.Node, in, out); err != nil {
			return err
		}
		cur = out
	}
	return nil
}
