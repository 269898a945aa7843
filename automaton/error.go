// Package automaton implements the static analysis path of the ReDoS
// checker: Thompson ε-NFA construction, ordered ε-elimination, the
// look-ahead augmented NFA (NFAwLA), SCC-based EDA/IDA ambiguity
// detection, and witness synthesis.
package automaton

import "errors"

// Common automaton errors
var (
	// ErrUnsupported indicates the pattern uses features outside the
	// analyzable fragment (backreferences, look-around). The caller routes
	// such patterns to the fuzz checker.
	ErrUnsupported = errors.New("pattern not supported by automaton analysis")

	// ErrNFATooLarge indicates a state or transition budget was exceeded
	// during construction. The caller falls back to the fuzz checker.
	ErrNFATooLarge = errors.New("NFA exceeds size limit")

	// ErrDeadline indicates the analysis deadline passed at one of the
	// cooperative checkpoints.
	ErrDeadline = errors.New("automaton analysis deadline exceeded")
)
