package vm

import (
	"github.com/coregx/redos/parser"
)

// Compile translates a pattern AST into a VM program. The layout mirrors
// the ε-NFA construction so step counts reflect the same backtracking
// structure the automaton path reasons about.
func Compile(p *parser.Pattern) *Program {
	c := &compiler{capBase: 2 * (p.Captures + 1)}
	c.emit(Inst{Op: OpSave, Idx: 0})
	c.node(p.Root)
	c.emit(Inst{Op: OpSave, Idx: 1})
	c.emit(Inst{Op: OpMatch})
	return &Program{
		Insts:    c.insts,
		NumCaps:  p.Captures + 1,
		NumLoops: c.numLoops,
		Anchored: startAnchored(p.Root),
	}
}

// startAnchored reports whether every match must begin at the input start.
func startAnchored(n parser.Node) bool {
	switch t := n.(type) {
	case *parser.Anchor:
		return t.AnchorKind == parser.AnchorStart || t.AnchorKind == parser.AnchorTextStart
	case *parser.Concat:
		if len(t.Nodes) > 0 {
			return startAnchored(t.Nodes[0])
		}
	case *parser.Group:
		return startAnchored(t.Node)
	case *parser.Alt:
		for _, alt := range t.Nodes {
			if !startAnchored(alt) {
				return false
			}
		}
		return len(t.Nodes) > 0
	}
	return false
}

type compiler struct {
	insts    []Inst
	capBase  int // register index of the first loop register
	numLoops int
}

// loopReg allocates a loop register for an unbounded loop whose body may
// match empty. Returns -1 when no guard is needed.
func (c *compiler) loopReg(body parser.Node) int {
	if parser.MinLength(body) > 0 {
		return -1
	}
	reg := c.capBase + c.numLoops
	c.numLoops++
	return reg
}

func (c *compiler) emit(i Inst) int {
	c.insts = append(c.insts, i)
	return len(c.insts) - 1
}

func (c *compiler) pos() int { return len(c.insts) }

func (c *compiler) node(n parser.Node) {
	switch t := n.(type) {
	case *parser.Literal:
		c.emit(Inst{Op: OpChar, R: t.R})

	case *parser.CharClass:
		c.emit(Inst{Op: OpClass, Set: t.Set})

	case *parser.Dot:
		if t.DotAll {
			c.emit(Inst{Op: OpAnyNL})
		} else {
			c.emit(Inst{Op: OpAny})
		}

	case *parser.Anchor:
		c.emit(Inst{Op: OpAssert, Anchor: t.AnchorKind})

	case *parser.Concat:
		for _, child := range t.Nodes {
			c.node(child)
		}

	case *parser.Alt:
		c.alt(t.Nodes)

	case *parser.Group:
		if t.Capturing() {
			c.emit(Inst{Op: OpSave, Idx: 2 * t.Index})
			c.node(t.Node)
			c.emit(Inst{Op: OpSave, Idx: 2*t.Index + 1})
		} else {
			c.node(t.Node)
		}

	case *parser.Repeat:
		c.repeat(t)

	case *parser.Backref:
		c.emit(Inst{Op: OpBackref, Idx: t.Index})

	case *parser.Lookaround:
		sub := &compiler{capBase: 2}
		sub.node(t.Node)
		sub.emit(Inst{Op: OpMatch})
		c.emit(Inst{
			Op:      OpLook,
			Prog:    &Program{Insts: sub.insts, NumCaps: 1, NumLoops: sub.numLoops},
			Negated: t.Negated,
			Behind:  t.Behind,
		})
	}
}

// alt emits a split cascade preferring earlier alternatives.
func (c *compiler) alt(nodes []parser.Node) {
	if len(nodes) == 0 {
		return
	}
	if len(nodes) == 1 {
		c.node(nodes[0])
		return
	}
	split := c.emit(Inst{Op: OpSplit})
	c.insts[split].Out = c.pos()
	c.node(nodes[0])
	jmp := c.emit(Inst{Op: OpJmp})
	c.insts[split].Out1 = c.pos()
	c.alt(nodes[1:])
	c.insts[jmp].Out = c.pos()
}

// repeat emits quantifier code: the standard loops for *, + and ?, and an
// unrolled sequence of mandatory plus optional copies for {n,m}.
func (c *compiler) repeat(t *parser.Repeat) {
	switch {
	case t.Min == 0 && t.Max < 0: // *
		c.star(t.Node, t.Greedy)

	case t.Min == 0 && t.Max == 1: // ?
		split := c.emit(Inst{Op: OpSplit})
		body := c.pos()
		c.node(t.Node)
		end := c.pos()
		c.setSplit(split, body, end, t.Greedy)

	default:
		// Mandatory copies; + is just {1,}.
		for i := 0; i < t.Min; i++ {
			c.node(t.Node)
		}
		switch {
		case t.Max < 0:
			// {n,}: trailing star.
			c.star(t.Node, t.Greedy)
		default:
			// {n,m}: optional copies, each skippable to the shared end.
			var splits []int
			for i := t.Min; i < t.Max; i++ {
				splits = append(splits, c.emit(Inst{Op: OpSplit}))
				c.insts[splits[len(splits)-1]].Out = c.pos()
				c.node(t.Node)
			}
			end := c.pos()
			for _, s := range splits {
				body := c.insts[s].Out
				c.setSplit(s, body, end, t.Greedy)
			}
		}
	}
}

// star emits the unbounded loop. Bodies that can match empty get an
// iteration guard: a repeat whose iteration consumed nothing must not
// loop again, the cut every backtracking engine applies.
func (c *compiler) star(body parser.Node, greedy bool) {
	reg := c.loopReg(body)
	split := c.emit(Inst{Op: OpSplit})
	entry := c.pos()
	if reg >= 0 {
		c.emit(Inst{Op: OpMark, Idx: reg})
	}
	c.node(body)
	if reg >= 0 {
		c.emit(Inst{Op: OpProgress, Idx: reg})
	}
	c.emit(Inst{Op: OpJmp, Out: split})
	end := c.pos()
	c.setSplit(split, entry, end, greedy)
}

// setSplit orients a split's branches for greediness: the preferred
// branch goes in Out.
func (c *compiler) setSplit(split, body, end int, greedy bool) {
	if greedy {
		c.insts[split].Out = body
		c.insts[split].Out1 = end
	} else {
		c.insts[split].Out = end
		c.insts[split].Out1 = body
	}
}
