// Package vm implements a step-counting backtracking virtual machine for
// regex patterns. It is not a production matcher: it exists to measure
// the amount of backtracking work a classic engine would perform on short
// inputs, so the fuzz and recall paths can observe step-count growth.
package vm

import (
	"fmt"

	"github.com/coregx/redos/parser"
)

// OpCode identifies a VM instruction.
type OpCode uint8

const (
	// OpMatch terminates the program successfully.
	OpMatch OpCode = iota

	// OpChar matches one specific code point.
	OpChar

	// OpAny matches any code point except newline.
	OpAny

	// OpAnyNL matches any code point including newline.
	OpAnyNL

	// OpClass matches one code point from a set.
	OpClass

	// OpJmp jumps to Out.
	OpJmp

	// OpSplit tries Out first (greedy preference), then Out1.
	OpSplit

	// OpSave stores the current position in capture register Idx.
	OpSave

	// OpBackref matches the text of capture group Idx again.
	OpBackref

	// OpAssert checks a zero-width anchor.
	OpAssert

	// OpLook runs a sub-program as a look-around assertion.
	OpLook

	// OpMark records the current position in loop register Idx at the
	// entry of a loop iteration.
	OpMark

	// OpProgress fails when the position equals loop register Idx: the
	// iteration consumed nothing, so re-entering the loop would diverge.
	// Backtracking engines apply the same empty-iteration cut, so step
	// counts stay faithful.
	OpProgress
)

// Inst is a single VM instruction. Only the fields relevant to Op are set.
type Inst struct {
	Op OpCode

	R       rune            // OpChar
	Set     *parser.CharSet // OpClass
	Out     int             // primary target
	Out1    int             // alternative target for OpSplit
	Idx     int             // register for OpSave / group for OpBackref
	Anchor  parser.AnchorKind
	Prog    *Program // OpLook sub-program
	Negated bool     // OpLook
	Behind  bool     // OpLook
}

// Program is a compiled instruction sequence.
type Program struct {
	Insts []Inst

	// NumCaps is the number of capture groups including group 0.
	NumCaps int

	// NumLoops is the number of loop registers used by OpMark/OpProgress.
	// Registers live after the capture slots in the backtrack-restored
	// register file.
	NumLoops int

	// Anchored is true when the pattern can only match at the start of
	// the input (leading ^ or \A).
	Anchored bool
}

// Regs returns the size of the register file: two slots per capture group
// plus one per loop register.
func (p *Program) Regs() int {
	return 2*p.NumCaps + p.NumLoops
}

// String renders one instruction for debugging.
func (i Inst) String() string {
	switch i.Op {
	case OpMatch:
		return "match"
	case OpChar:
		return fmt.Sprintf("char %q", i.R)
	case OpAny:
		return "any"
	case OpAnyNL:
		return "anynl"
	case OpClass:
		return fmt.Sprintf("class %v", i.Set)
	case OpJmp:
		return fmt.Sprintf("jmp %d", i.Out)
	case OpSplit:
		return fmt.Sprintf("split %d, %d", i.Out, i.Out1)
	case OpSave:
		return fmt.Sprintf("save %d", i.Idx)
	case OpBackref:
		return fmt.Sprintf("backref %d", i.Idx)
	case OpAssert:
		return fmt.Sprintf("assert %d", i.Anchor)
	case OpLook:
		return fmt.Sprintf("look neg=%v behind=%v", i.Negated, i.Behind)
	case OpMark:
		return fmt.Sprintf("mark %d", i.Idx)
	case OpProgress:
		return fmt.Sprintf("progress %d", i.Idx)
	}
	return "?"
}
