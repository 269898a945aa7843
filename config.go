package redos

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coregx/redos/automaton"
	"github.com/coregx/redos/fuzz"
)

// CheckerKind selects the analysis path.
type CheckerKind uint8

const (
	// CheckerAuto lets the feasibility gate decide.
	CheckerAuto CheckerKind = iota

	// CheckerAutomaton forces the static automaton path. Patterns outside
	// its fragment come back UNKNOWN.
	CheckerAutomaton

	// CheckerFuzz forces the dynamic fuzz path.
	CheckerFuzz
)

// MatchMode re-exports the automaton match modes for configuration.
type MatchMode = automaton.MatchMode

// Match mode aliases.
const (
	MatchModeAuto    = automaton.MatchModeAuto
	MatchModeFull    = automaton.MatchModeFull
	MatchModePartial = automaton.MatchModePartial
)

// Seeder and acceleration aliases.
type (
	SeederKind = fuzz.SeederKind
	AccelMode  = fuzz.AccelMode
)

// Fuzz knob aliases.
const (
	SeederStatic  = fuzz.SeederStatic
	SeederDynamic = fuzz.SeederDynamic
	AccelAuto     = fuzz.AccelAuto
	AccelOn       = fuzz.AccelOn
	AccelOff      = fuzz.AccelOff
)

// Config controls one check invocation. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// Checker picks the analysis path. Default: CheckerAuto.
	Checker CheckerKind

	// MatchMode controls how implicit trailing context is treated by the
	// exploitability filter. Default: MatchModeAuto.
	MatchMode MatchMode

	// Timeout is the overall wall-clock budget of one check.
	// Default: 10s.
	Timeout time.Duration

	// RecallTimeout bounds each recall trial. Default: 2s.
	RecallTimeout time.Duration

	// MaxAttackLength caps the generated attack string. Default: 4096.
	MaxAttackLength int

	// AttackLimit is the default pump repeat count of generated attacks.
	// Default: 20.
	AttackLimit int

	// MaxIterations is the fuzz candidate budget. Default: 200.
	MaxIterations int

	// MaxNFASize caps NFAwLA states and transitions before falling back
	// to the fuzz path. Default: 100000.
	MaxNFASize int

	// MaxPatternSize caps AST nodes before falling back to the fuzz
	// path. Default: 10000.
	MaxPatternSize int

	// RecallLimit is the number of recall attempts before a witness is
	// retracted. Default: 2.
	RecallLimit int

	// SkipRecall bypasses recall validation entirely.
	SkipRecall bool

	// RandomSeed makes fuzzing deterministic. Default: 0.
	RandomSeed int64

	// Seeder selects the fuzz seed strategy. Default: SeederStatic.
	Seeder SeederKind

	// Acceleration controls the fuzz required-literal prescreen.
	// Default: AccelAuto.
	Acceleration AccelMode

	// ExponentialThreshold is the step-ratio between doubled pump lengths
	// that classifies fuzz growth as exponential. Default: 10.
	ExponentialThreshold float64

	// MultilineEndAnchors makes line-end $ under the multiline flag count
	// as a right anchor for exploitability. Default: true, matching the
	// behavior of backtracking engines that anchor on any line end.
	MultilineEndAnchors bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Checker:              CheckerAuto,
		MatchMode:            MatchModeAuto,
		Timeout:              10 * time.Second,
		RecallTimeout:        2 * time.Second,
		MaxAttackLength:      4096,
		AttackLimit:          20,
		MaxIterations:        200,
		MaxNFASize:           100000,
		MaxPatternSize:       10000,
		RecallLimit:          2,
		Seeder:               SeederStatic,
		Acceleration:         AccelAuto,
		ExponentialThreshold: 10,
		MultilineEndAnchors:  true,
	}
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return &ConfigError{Field: "Timeout", Message: "must be positive"}
	}
	if c.RecallTimeout <= 0 {
		return &ConfigError{Field: "RecallTimeout", Message: "must be positive"}
	}
	if c.MaxAttackLength < 16 {
		return &ConfigError{Field: "MaxAttackLength", Message: "must be at least 16"}
	}
	if c.AttackLimit < 1 {
		return &ConfigError{Field: "AttackLimit", Message: "must be at least 1"}
	}
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "MaxIterations", Message: "must be at least 1"}
	}
	if c.MaxNFASize < 16 || c.MaxNFASize > 10_000_000 {
		return &ConfigError{Field: "MaxNFASize", Message: "must be between 16 and 10,000,000"}
	}
	if c.MaxPatternSize < 1 {
		return &ConfigError{Field: "MaxPatternSize", Message: "must be at least 1"}
	}
	if c.RecallLimit < 1 {
		return &ConfigError{Field: "RecallLimit", Message: "must be at least 1"}
	}
	if c.ExponentialThreshold <= 1 {
		return &ConfigError{Field: "ExponentialThreshold", Message: "must be greater than 1"}
	}
	return nil
}

// ConfigError represents an invalid configuration parameter.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "redos: invalid config: " + e.Field + ": " + e.Message
}

// yamlConfig is the on-disk preset form. Enum fields are strings; zero
// values keep the default.
type yamlConfig struct {
	Checker              string  `yaml:"checker"`
	MatchMode            string  `yaml:"match_mode"`
	Timeout              string  `yaml:"timeout"`
	RecallTimeout        string  `yaml:"recall_timeout"`
	MaxAttackLength      int     `yaml:"max_attack_length"`
	AttackLimit          int     `yaml:"attack_limit"`
	MaxIterations        int     `yaml:"max_iterations"`
	MaxNFASize           int     `yaml:"max_nfa_size"`
	MaxPatternSize       int     `yaml:"max_pattern_size"`
	RecallLimit          int     `yaml:"recall_limit"`
	SkipRecall           bool    `yaml:"skip_recall"`
	RandomSeed           int64   `yaml:"random_seed"`
	Seeder               string  `yaml:"seeder"`
	Acceleration         string  `yaml:"acceleration"`
	ExponentialThreshold float64 `yaml:"exponential_threshold"`
	MultilineEndAnchors  *bool   `yaml:"multiline_end_anchors"`
}

// LoadConfig reads a YAML preset and merges it over the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	var in yamlConfig
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Config{}, fmt.Errorf("redos: invalid config file: %w", err)
	}
	cfg := DefaultConfig()

	switch in.Checker {
	case "", "auto":
	case "automaton":
		cfg.Checker = CheckerAutomaton
	case "fuzz":
		cfg.Checker = CheckerFuzz
	default:
		return Config{}, &ConfigError{Field: "checker", Message: "must be auto, automaton or fuzz"}
	}
	switch in.MatchMode {
	case "", "auto":
	case "full":
		cfg.MatchMode = MatchModeFull
	case "partial":
		cfg.MatchMode = MatchModePartial
	default:
		return Config{}, &ConfigError{Field: "match_mode", Message: "must be auto, full or partial"}
	}
	switch in.Seeder {
	case "", "static":
	case "dynamic":
		cfg.Seeder = SeederDynamic
	default:
		return Config{}, &ConfigError{Field: "seeder", Message: "must be static or dynamic"}
	}
	switch in.Acceleration {
	case "", "auto":
	case "on":
		cfg.Acceleration = AccelOn
	case "off":
		cfg.Acceleration = AccelOff
	default:
		return Config{}, &ConfigError{Field: "acceleration", Message: "must be auto, on or off"}
	}

	if in.Timeout != "" {
		d, err := time.ParseDuration(in.Timeout)
		if err != nil {
			return Config{}, &ConfigError{Field: "timeout", Message: err.Error()}
		}
		cfg.Timeout = d
	}
	if in.RecallTimeout != "" {
		d, err := time.ParseDuration(in.RecallTimeout)
		if err != nil {
			return Config{}, &ConfigError{Field: "recall_timeout", Message: err.Error()}
		}
		cfg.RecallTimeout = d
	}
	if in.MaxAttackLength > 0 {
		cfg.MaxAttackLength = in.MaxAttackLength
	}
	if in.AttackLimit > 0 {
		cfg.AttackLimit = in.AttackLimit
	}
	if in.MaxIterations > 0 {
		cfg.MaxIterations = in.MaxIterations
	}
	if in.MaxNFASize > 0 {
		cfg.MaxNFASize = in.MaxNFASize
	}
	if in.MaxPatternSize > 0 {
		cfg.MaxPatternSize = in.MaxPatternSize
	}
	if in.RecallLimit > 0 {
		cfg.RecallLimit = in.RecallLimit
	}
	cfg.SkipRecall = in.SkipRecall
	cfg.RandomSeed = in.RandomSeed
	if in.ExponentialThreshold > 1 {
		cfg.ExponentialThreshold = in.ExponentialThreshold
	}
	if in.MultilineEndAnchors != nil {
		cfg.MultilineEndAnchors = *in.MultilineEndAnchors
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
