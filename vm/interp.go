package vm

import (
	"errors"
	"time"

	"github.com/coregx/redos/parser"
)

// Budget errors returned by Run.
var (
	// ErrStepBudget indicates the step budget was exhausted before the
	// run finished.
	ErrStepBudget = errors.New("vm: step budget exhausted")

	// ErrDeadline indicates the wall-clock deadline passed mid-run.
	ErrDeadline = errors.New("vm: deadline exceeded")
)

// deadlineCheckInterval is how many steps pass between deadline checks.
const deadlineCheckInterval = 4096

// DefaultMaxSteps bounds a single run when the caller does not say
// otherwise.
const DefaultMaxSteps = 50_000_000

// Result is the outcome of one VM run.
type Result struct {
	// Matched is true when the pattern matched somewhere in the input.
	Matched bool

	// Steps counts instruction dispatches and character comparisons.
	Steps int64
}

// Interpreter executes a program over one input with a step counter.
// A fresh Interpreter is used per run; it holds no state across runs.
type Interpreter struct {
	prog     *Program
	input    []rune
	steps    int64
	maxSteps int64
	deadline time.Time
	err      error
}

// NewInterpreter prepares a run of prog over input. maxSteps <= 0 selects
// DefaultMaxSteps. A zero deadline disables the wall-clock check.
func NewInterpreter(prog *Program, input string, maxSteps int64, deadline time.Time) *Interpreter {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Interpreter{
		prog:     prog,
		input:    []rune(input),
		maxSteps: maxSteps,
		deadline: deadline,
	}
}

// Run executes the program with first-match semantics: for unanchored
// patterns every start position is tried until one matches, accumulating
// steps across attempts, exactly as a backtracking engine would.
//
// The step count is valid even when an error is returned; it reflects the
// work done up to the budget trip.
func (in *Interpreter) Run() (Result, error) {
	caps := make([]int, in.prog.Regs())
	starts := len(in.input)
	if in.prog.Anchored {
		starts = 0
	}
	for start := 0; start <= starts; start++ {
		for i := range caps {
			caps[i] = -1
		}
		if _, ok := in.match(0, start, caps); ok {
			return Result{Matched: true, Steps: in.steps}, in.err
		}
		if in.err != nil {
			return Result{Steps: in.steps}, in.err
		}
	}
	return Result{Steps: in.steps}, in.err
}

// step charges one unit of work and polls the budgets.
func (in *Interpreter) step() bool {
	in.steps++
	if in.steps > in.maxSteps {
		in.err = ErrStepBudget
		return false
	}
	if in.steps%deadlineCheckInterval == 0 && !in.deadline.IsZero() && time.Now().After(in.deadline) {
		in.err = ErrDeadline
		return false
	}
	return true
}

// match executes from pc at pos. Returns the end position on success.
// OpSplit recurses on the preferred branch and loops on the alternative;
// everything else advances iteratively.
func (in *Interpreter) match(pc, pos int, caps []int) (int, bool) {
	for {
		if in.err != nil || !in.step() {
			return -1, false
		}
		if pc >= len(in.prog.Insts) {
			return -1, false
		}
		inst := &in.prog.Insts[pc]

		switch inst.Op {
		case OpMatch:
			return pos, true

		case OpChar:
			if pos >= len(in.input) || in.input[pos] != inst.R {
				return -1, false
			}
			pos++
			pc++

		case OpAny:
			if pos >= len(in.input) || in.input[pos] == '\n' {
				return -1, false
			}
			pos++
			pc++

		case OpAnyNL:
			if pos >= len(in.input) {
				return -1, false
			}
			pos++
			pc++

		case OpClass:
			if pos >= len(in.input) || !inst.Set.Contains(in.input[pos]) {
				return -1, false
			}
			pos++
			pc++

		case OpJmp:
			pc = inst.Out

		case OpSplit:
			saved := make([]int, len(caps))
			copy(saved, caps)
			if end, ok := in.match(inst.Out, pos, caps); ok {
				return end, ok
			}
			if in.err != nil {
				return -1, false
			}
			copy(caps, saved)
			pc = inst.Out1

		case OpSave:
			if inst.Idx < len(caps) {
				caps[inst.Idx] = pos
			}
			pc++

		case OpBackref:
			lo, hi := caps[2*inst.Idx], caps[2*inst.Idx+1]
			if lo < 0 || hi < 0 {
				pc++ // unset group matches empty
				continue
			}
			n := hi - lo
			if pos+n > len(in.input) {
				return -1, false
			}
			for i := 0; i < n; i++ {
				if !in.step() {
					return -1, false
				}
				if in.input[pos+i] != in.input[lo+i] {
					return -1, false
				}
			}
			pos += n
			pc++

		case OpAssert:
			if !in.assert(inst.Anchor, pos) {
				return -1, false
			}
			pc++

		case OpMark:
			caps[inst.Idx] = pos
			pc++

		case OpProgress:
			if caps[inst.Idx] == pos {
				return -1, false
			}
			pc++

		case OpLook:
			if !in.look(inst, pos) {
				return -1, false
			}
			if in.err != nil {
				return -1, false
			}
			pc++
		}
	}
}

// look evaluates a look-around by running the sub-program with its own
// interpreter. The sub-run's steps are folded into the outer counter so
// budgets stay global.
func (in *Interpreter) look(inst *Inst, pos int) bool {
	budget := in.maxSteps - in.steps
	if budget <= 0 {
		in.err = ErrStepBudget
		return false
	}
	matched := false
	if inst.Behind {
		// Variable-length look-behind: try every start whose match ends
		// exactly at pos.
		for i := 0; i <= pos && !matched; i++ {
			sub := NewInterpreter(inst.Prog, "", budget, in.deadline)
			sub.input = in.input
			end, ok := sub.match(0, i, make([]int, inst.Prog.Regs()))
			in.steps += sub.steps
			if sub.err != nil {
				in.err = sub.err
				return false
			}
			if ok && end == pos {
				matched = true
			}
		}
	} else {
		sub := NewInterpreter(inst.Prog, "", budget, in.deadline)
		sub.input = in.input
		_, matched = sub.match(0, pos, make([]int, inst.Prog.Regs()))
		in.steps += sub.steps
		if sub.err != nil {
			in.err = sub.err
			return false
		}
	}
	if inst.Negated {
		return !matched
	}
	return matched
}

// assert checks a zero-width anchor at pos.
func (in *Interpreter) assert(kind parser.AnchorKind, pos int) bool {
	switch kind {
	case parser.AnchorStart, parser.AnchorTextStart:
		return pos == 0
	case parser.AnchorEnd, parser.AnchorTextEnd:
		return pos == len(in.input)
	case parser.AnchorLineStart:
		return pos == 0 || in.input[pos-1] == '\n'
	case parser.AnchorLineEnd:
		return pos == len(in.input) || in.input[pos] == '\n'
	case parser.AnchorWordBoundary:
		return in.wordBoundary(pos)
	case parser.AnchorNonWordBoundary:
		return !in.wordBoundary(pos)
	}
	return true
}

func (in *Interpreter) wordBoundary(pos int) bool {
	before := pos > 0 && isWordRune(in.input[pos-1])
	after := pos < len(in.input) && isWordRune(in.input[pos])
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= 'a' && r <= 'z')
}
