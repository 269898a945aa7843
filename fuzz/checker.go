package fuzz

import (
	"errors"
	"math"
	"time"

	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/parser"
	"github.com/coregx/redos/vm"
)

// ErrBudget indicates the fuzz loop passed its deadline without reaching a
// verdict. Running out of iterations is not an error: Check then returns a
// nil Result.
var ErrBudget = errors.New("fuzz budget exhausted")

// Options bound one fuzz run.
type Options struct {
	// Seeder selects static or dynamic seed derivation.
	Seeder SeederKind

	// Acceleration controls the required-literal prescreen.
	Acceleration AccelMode

	// MaxIterations caps the number of measurements, one per candidate and
	// failure tail.
	MaxIterations int

	// RandSeed makes the mutation sequence reproducible.
	RandSeed int64

	// MaxSteps bounds each VM run.
	MaxSteps int64

	// Deadline aborts the loop when exceeded. Zero disables it.
	Deadline time.Time

	// ExponentialThreshold is the minimum step-count ratio between
	// doubled pump lengths that classifies growth as exponential.
	ExponentialThreshold float64

	// MaxAttackLength caps the generated attack string.
	MaxAttackLength int

	// AttackRepeat is the default pump count of generated attacks.
	AttackRepeat int
}

// Result is the outcome of one fuzz run with a verdict.
type Result struct {
	Complexity diagnostics.Complexity
	Attack     *diagnostics.AttackPattern
}

// Checker drives the seed/mutate loop against the step-counting VM.
type Checker struct {
	opts Options
}

// NewChecker creates a fuzz checker.
func NewChecker(opts Options) *Checker {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 200
	}
	if opts.ExponentialThreshold <= 1 {
		opts.ExponentialThreshold = 10
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 1_000_000
	}
	return &Checker{opts: opts}
}

// basePumpLen is the target base length L of a candidate input; growth is
// observed at L, 2L and 4L.
const basePumpLen = 8

// Check evaluates candidates until one shows super-linear growth or the
// budget runs out. A nil Result with nil error means no witness was found
// within budget: the pattern looked safe to the fuzzer, which is evidence,
// not proof.
func (c *Checker) Check(p *parser.Pattern) (*Result, error) {
	prog := vm.Compile(p)
	ps := newPrescreener(p, c.opts.Acceleration)
	seeds := Seeds(p, c.opts.Seeder)
	if len(seeds) == 0 {
		seeds = []string{"a"}
	}
	mut := NewMutator(c.opts.RandSeed, CharPool(p))

	// Failure tails to append after the pump: an empty tail probes pure
	// repetition, the others force the final match attempt to fail.
	tails := []string{"", "!", "\x00"}

	candidates := append([]string{}, seeds...)
	iterations := 0
	for i := 0; iterations < c.opts.MaxIterations; i++ {
		if !c.opts.Deadline.IsZero() && time.Now().After(c.opts.Deadline) {
			return nil, ErrBudget
		}
		var cand string
		if i < len(candidates) {
			cand = candidates[i]
		} else {
			// Mutate a previously seen candidate, round-robin.
			base := candidates[i%len(candidates)]
			other := candidates[(i*7+3)%len(candidates)]
			cand = mut.Mutate(base, other)
			candidates = append(candidates, cand)
		}
		if cand == "" {
			continue
		}
		for _, tail := range tails {
			iterations++
			res, err := c.measure(prog, ps, cand, tail)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
			if iterations >= c.opts.MaxIterations {
				break
			}
		}
	}
	return nil, nil
}

// measure runs the VM on pump^k + tail at three doubling lengths and fits
// the growth curve. Returns a Result when the growth is super-linear.
func (c *Checker) measure(prog *vm.Program, ps *prescreener, pump, tail string) (*Result, error) {
	k := basePumpLen / len(pump)
	if k < 1 {
		k = 1
	}

	input := func(mult int) string {
		return repeat(pump, k*mult) + tail
	}
	if !ps.admits(input(4)) {
		return nil, nil
	}

	var steps [3]float64
	var lens [3]float64
	for i, mult := range []int{1, 2, 4} {
		in := input(mult)
		interp := vm.NewInterpreter(prog, in, c.opts.MaxSteps, c.opts.Deadline)
		res, err := interp.Run()
		switch {
		case errors.Is(err, vm.ErrStepBudget):
			// Blowing the step budget at a short input is the strongest
			// possible signal.
			return c.witness(pump, tail, diagnostics.Exponential()), nil
		case errors.Is(err, vm.ErrDeadline):
			return nil, ErrBudget
		}
		steps[i] = float64(res.Steps)
		lens[i] = float64(len(in))
	}

	if steps[0] <= 0 || steps[1] <= 0 {
		return nil, nil
	}
	// Tiny absolute counts produce noisy ratios; require real work before
	// classifying growth as exponential.
	const minSignalSteps = 1000
	r2 := steps[2] / steps[1]
	if r2 >= c.opts.ExponentialThreshold && steps[2] >= minSignalSteps {
		return c.witness(pump, tail, diagnostics.Exponential()), nil
	}
	// Log-log fit across the widest span.
	if lens[2] > lens[0] && steps[2] > steps[0] {
		slope := math.Log(steps[2]/steps[0]) / math.Log(lens[2]/lens[0])
		degree := int(math.Round(slope))
		if degree >= 2 {
			return c.witness(pump, tail, diagnostics.Polynomial(degree)), nil
		}
	}
	return nil, nil
}

// witness packages the confirmed pump as an attack pattern.
func (c *Checker) witness(pump, tail string, cpx diagnostics.Complexity) *Result {
	repeat := c.opts.AttackRepeat
	if repeat < 1 {
		repeat = 20
	}
	if c.opts.MaxAttackLength > 0 && len(pump) > 0 {
		if max := (c.opts.MaxAttackLength - len(tail)) / len(pump); repeat > max && max >= 1 {
			repeat = max
		}
	}
	return &Result{
		Complexity: cpx,
		Attack:     diagnostics.NewAttackPattern("", pump, tail, repeat),
	}
}
