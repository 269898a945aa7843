// Package redos detects Regular-Expression Denial-of-Service (ReDoS)
// vulnerabilities in user-supplied regular expressions.
//
// Given a pattern and optional match flags, the checker classifies the
// worst-case matching time of a backtracking engine as safe (linear),
// polynomial of degree k, or exponential, and when vulnerable produces a
// structured witness (prefix, pump, suffix) such that prefix + pump*n +
// suffix drives super-linear work.
//
// The analysis is hybrid:
//   - The automaton path builds a look-ahead augmented NFA and detects
//     exponential (EDA) and polynomial (IDA) degrees of ambiguity in its
//     strongly connected components.
//   - The fuzz path compiles the pattern to a step-counting backtracking
//     VM and searches for inputs whose step counts grow super-linearly.
//
// A feasibility gate routes each pattern: backreferences, look-around and
// oversize automata go to the fuzz path, everything else is analyzed
// statically. Witnesses are confirmed by replaying the attack at growing
// pump counts (recall validation) before being reported.
//
// Basic usage:
//
//	diag := redos.Check(`^(a+)+$`)
//	if diag.IsVulnerable() {
//	    fmt.Println(diag.Complexity.Summary()) // "O(2^n)"
//	    fmt.Println(diag.Attack.String())      // attack input
//	}
//
// Advanced usage:
//
//	cfg := redos.DefaultConfig()
//	cfg.Timeout = 2 * time.Second
//	checker := redos.NewChecker(cfg, logger)
//	diag := checker.Check(pattern, parser.DefaultFlags())
package redos

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/coregx/redos/automaton"
	"github.com/coregx/redos/diagnostics"
	"github.com/coregx/redos/fuzz"
	"github.com/coregx/redos/parser"
	"github.com/coregx/redos/recall"
	"github.com/coregx/redos/vm"
)

// Checker names reported in Diagnostics.Checker.
const (
	checkerAutomaton = "automaton"
	checkerFuzz      = "fuzz"
)

// Checker runs ReDoS analyses under one configuration. A Checker is
// stateless between calls and safe for concurrent use; every Check call
// builds its own automata and VM programs.
type Checker struct {
	config Config
	logger *zap.Logger
}

// NewChecker creates a checker. A nil logger disables logging.
func NewChecker(config Config, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{config: config, logger: logger}
}

// Check analyzes a pattern string under default flags.
func Check(pattern string) *diagnostics.Diagnostics {
	return NewChecker(DefaultConfig(), nil).Check(pattern, parser.DefaultFlags())
}

// CheckWithConfig analyzes a pattern string with explicit flags and
// configuration.
func CheckWithConfig(pattern string, flags parser.Flags, config Config) *diagnostics.Diagnostics {
	return NewChecker(config, nil).Check(pattern, flags)
}

// IsVulnerable reports whether the pattern has a confirmed ReDoS
// vulnerability under the default configuration.
func IsVulnerable(pattern string) bool {
	return Check(pattern).IsVulnerable()
}

// IsSafe reports whether the pattern is classified safe under the default
// configuration.
func IsSafe(pattern string) bool {
	return Check(pattern).IsSafe()
}

// Check parses and analyzes one pattern.
func (c *Checker) Check(pattern string, flags parser.Flags) *diagnostics.Diagnostics {
	if err := c.config.Validate(); err != nil {
		return diagnostics.NewError(pattern, flags.String(), err)
	}
	parsed, err := parser.Parse(pattern, flags)
	if err != nil {
		c.logger.Debug("parse failed", zap.String("pattern", pattern), zap.Error(err))
		return diagnostics.NewError(pattern, flags.String(), err)
	}
	return c.CheckPattern(parsed)
}

// CheckPattern analyzes an already parsed pattern.
func (c *Checker) CheckPattern(p *parser.Pattern) *diagnostics.Diagnostics {
	deadline := time.Now().Add(c.config.Timeout)
	flags := p.Flags.String()

	path, reason := c.route(p)
	c.logger.Debug("routed pattern",
		zap.String("pattern", p.Source),
		zap.String("path", path),
		zap.String("reason", reason),
	)

	switch path {
	case checkerAutomaton:
		return c.runAutomaton(p, flags, deadline)
	default:
		return c.runFuzz(p, flags, deadline, reason)
	}
}

// route applies the feasibility gate: which path analyzes this pattern,
// and why.
func (c *Checker) route(p *parser.Pattern) (path, reason string) {
	switch c.config.Checker {
	case CheckerFuzz:
		return checkerFuzz, "configured"
	case CheckerAutomaton:
		return checkerAutomaton, "configured"
	}
	switch {
	case parser.HasBackrefs(p.Root):
		return checkerFuzz, "pattern contains backreferences"
	case parser.HasLookaround(p.Root):
		return checkerFuzz, "pattern contains look-around"
	case parser.CountNodes(p.Root) > c.config.MaxPatternSize:
		return checkerFuzz, "pattern exceeds size limit"
	}
	return checkerAutomaton, "analyzable fragment"
}

// runAutomaton executes the static path, falling back to fuzz when the
// automaton grows past its budget.
func (c *Checker) runAutomaton(p *parser.Pattern, flags string, deadline time.Time) *diagnostics.Diagnostics {
	checker := automaton.NewChecker(automaton.Options{
		MaxNFASize:          c.config.MaxNFASize,
		MatchMode:           c.config.MatchMode,
		MultilineEndAnchors: c.config.MultilineEndAnchors,
		MaxAttackLength:     c.config.MaxAttackLength,
		AttackRepeat:        c.config.AttackLimit,
		Deadline:            deadline,
	})
	res, err := checker.Check(p)
	switch {
	case errors.Is(err, automaton.ErrUnsupported):
		if c.config.Checker == CheckerAutomaton {
			return diagnostics.NewUnknown(p.Source, flags, checkerAutomaton,
				"pattern uses features outside the automaton fragment")
		}
		return c.runFuzz(p, flags, deadline, "unsupported by automaton")
	case errors.Is(err, automaton.ErrNFATooLarge):
		if c.config.Checker == CheckerAutomaton {
			return diagnostics.NewUnknown(p.Source, flags, checkerAutomaton,
				"NFA exceeds the configured size limit")
		}
		return c.runFuzz(p, flags, deadline, "NFA too large")
	case errors.Is(err, automaton.ErrDeadline):
		return diagnostics.NewUnknown(p.Source, flags, checkerAutomaton,
			"overall timeout exceeded during automaton analysis")
	case err != nil:
		return diagnostics.NewError(p.Source, flags, err)
	}

	if res.Complexity.IsSafe() {
		return diagnostics.NewSafe(p.Source, flags, checkerAutomaton)
	}
	return c.confirm(p, flags, checkerAutomaton, res.Complexity, res.Attack, res.Hotspot, deadline)
}

// runFuzz executes the dynamic path.
func (c *Checker) runFuzz(p *parser.Pattern, flags string, deadline time.Time, reason string) *diagnostics.Diagnostics {
	checker := fuzz.NewChecker(fuzz.Options{
		Seeder:               c.config.Seeder,
		Acceleration:         c.config.Acceleration,
		MaxIterations:        c.config.MaxIterations,
		RandSeed:             c.config.RandomSeed,
		Deadline:             deadline,
		ExponentialThreshold: c.config.ExponentialThreshold,
		MaxAttackLength:      c.config.MaxAttackLength,
		AttackRepeat:         c.config.AttackLimit,
	})
	res, err := checker.Check(p)
	if err != nil {
		return diagnostics.NewUnknown(p.Source, flags, checkerFuzz,
			"fuzz budget exhausted: "+budgetName(err))
	}
	if res == nil {
		// No witness within budget. For patterns outside the automaton
		// fragment this is not evidence of safety.
		if parser.HasBackrefs(p.Root) || parser.HasLookaround(p.Root) {
			return diagnostics.NewUnknown(p.Source, flags, checkerFuzz,
				"no witness found within budget; pattern is outside the provable fragment")
		}
		return diagnostics.NewSafe(p.Source, flags, checkerFuzz)
	}
	hotspot := diagnostics.NewHotspot(p.Source, 0, len(p.Source))
	return c.confirm(p, flags, checkerFuzz, res.Complexity, res.Attack, hotspot, deadline)
}

// confirm recall-validates a vulnerable verdict before reporting it.
func (c *Checker) confirm(p *parser.Pattern, flags, path string, cpx diagnostics.Complexity,
	attack *diagnostics.AttackPattern, hotspot *diagnostics.Hotspot, deadline time.Time) *diagnostics.Diagnostics {

	if c.config.SkipRecall {
		return diagnostics.NewVulnerable(p.Source, flags, path, cpx, attack, hotspot)
	}
	prog := vm.Compile(p)
	validator := recall.NewValidator(recall.Options{
		TrialTimeout: c.config.RecallTimeout,
	})
	for attempt := 0; attempt < c.config.RecallLimit; attempt++ {
		if time.Now().After(deadline) {
			return diagnostics.NewUnknown(p.Source, flags, path,
				"overall timeout exceeded during recall validation")
		}
		outcome, err := validator.Validate(prog, attack, cpx)
		if err != nil {
			continue
		}
		if outcome.Confirmed {
			c.logger.Debug("witness confirmed",
				zap.String("pattern", p.Source),
				zap.String("complexity", outcome.Complexity.Summary()),
			)
			return diagnostics.NewVulnerable(p.Source, flags, path, outcome.Complexity, attack, hotspot)
		}
	}
	c.logger.Debug("witness retracted", zap.String("pattern", p.Source))
	return diagnostics.NewUnknown(p.Source, flags, path,
		fmt.Sprintf("candidate %s witness failed recall validation", cpx.Summary()))
}

// budgetName renders which budget tripped.
func budgetName(err error) string {
	switch {
	case errors.Is(err, fuzz.ErrBudget):
		return "overall timeout"
	case errors.Is(err, recall.ErrBudget):
		return "recall timeout"
	}
	return err.Error()
}
