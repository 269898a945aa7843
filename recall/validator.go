// Package recall validates witnesses empirically: it replays the generated
// attack at increasing pump counts through the step-counting VM and
// confirms that the observed growth matches the reported complexity class.
// A witness that fails validation is retracted.
package recall

import (
	"errors"
	"math"
	"time"

	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/vm"
)

// ErrBudget indicates a recall trial ran out of time.
var ErrBudget = errors.New("recall budget exhausted")

// Options bound one validation.
type Options struct {
	// TrialTimeout bounds each VM trial.
	TrialTimeout time.Duration

	// MaxSteps bounds each VM trial's step count. A trial that exhausts
	// the budget counts as confirmation: the attack is already doing
	// super-linear work at a tiny input.
	MaxSteps int64

	// BasePumps is n1, the smallest pump count measured. n2 = n1 + delta,
	// n3 = n1 + 2*delta with delta = n1 by default.
	BasePumps int

	// Epsilon is the tolerance of the exponential ratio test.
	Epsilon float64
}

// Outcome is the validation verdict.
type Outcome struct {
	// Confirmed is true when the measured growth supports the claim.
	Confirmed bool

	// Complexity is the validated class; for polynomial claims the degree
	// is re-estimated from the measurements.
	Complexity diagnostics.Complexity
}

// Validator replays attacks through the VM.
type Validator struct {
	opts Options
}

// NewValidator creates a validator.
func NewValidator(opts Options) *Validator {
	if opts.BasePumps <= 0 {
		opts.BasePumps = 8
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = vm.DefaultMaxSteps
	}
	if opts.Epsilon <= 0 || opts.Epsilon >= 1 {
		opts.Epsilon = 0.5
	}
	return &Validator{opts: opts}
}

// Validate measures the attack at n1 < n2 < n3 pumps and checks the
// growth against the claimed complexity.
func (v *Validator) Validate(prog *vm.Program, attack *diagnostics.AttackPattern, claimed diagnostics.Complexity) (*Outcome, error) {
	n1 := v.opts.BasePumps
	delta := n1
	pumps := []int{n1, n1 + delta, n1 + 2*delta}

	var steps [3]float64
	var lens [3]float64
	for i, n := range pumps {
		input := attack.Build(n)
		var deadline time.Time
		if v.opts.TrialTimeout > 0 {
			deadline = time.Now().Add(v.opts.TrialTimeout)
		}
		interp := vm.NewInterpreter(prog, input, v.opts.MaxSteps, deadline)
		res, err := interp.Run()
		switch {
		case errors.Is(err, vm.ErrStepBudget):
			return &Outcome{Confirmed: true, Complexity: claimed}, nil
		case errors.Is(err, vm.ErrDeadline):
			// The engine could not even finish a short trial: that is
			// super-linear work in the flesh.
			return &Outcome{Confirmed: true, Complexity: claimed}, nil
		}
		steps[i] = float64(res.Steps)
		lens[i] = float64(len(input))
	}

	if steps[0] <= 0 || steps[1] <= 0 || steps[2] <= 0 {
		return &Outcome{}, nil
	}

	if claimed.IsExponential() {
		// Exponential growth doubles the step count at least (1-eps)
		// times per added pump: steps(n+delta)/steps(n) >= 2^(delta*(1-eps)).
		want := math.Pow(2, float64(delta)*(1-v.opts.Epsilon))
		if steps[1]/steps[0] >= want && steps[2]/steps[1] >= want {
			return &Outcome{Confirmed: true, Complexity: claimed}, nil
		}
		return &Outcome{}, nil
	}

	// Polynomial: estimate the degree over the widest span and require a
	// super-linear fit.
	slope := math.Log(steps[2]/steps[0]) / math.Log(lens[2]/lens[0])
	degree := int(math.Round(slope))
	if degree >= 2 {
		return &Outcome{Confirmed: true, Complexity: diagnostics.Polynomial(degree)}, nil
	}
	return &Outcome{}, nil
}
