package diagnostics

import (
	"encoding/json"
	"fmt"
)

// Status is the overall verdict of a check.
type Status uint8

const (
	// StatusSafe means no exploitable ambiguity was found.
	StatusSafe Status = iota

	// StatusVulnerable means an exploitable ambiguity was found and a
	// witness attack pattern was produced.
	StatusVulnerable

	// StatusUnknown means the analysis could not decide within its budgets
	// or the pattern uses features outside the analyzable fragment.
	StatusUnknown

	// StatusError means the pattern could not be analyzed at all
	// (parse failure or internal invariant violation).
	StatusError
)

// String returns the stable serialized name of the status.
func (s Status) String() string {
	switch s {
	case StatusSafe:
		return "safe"
	case StatusVulnerable:
		return "vulnerable"
	case StatusUnknown:
		return "unknown"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// statusFromString is the inverse of Status.String.
func statusFromString(s string) (Status, error) {
	switch s {
	case "safe":
		return StatusSafe, nil
	case "vulnerable":
		return StatusVulnerable, nil
	case "unknown":
		return StatusUnknown, nil
	case "error":
		return StatusError, nil
	}
	return StatusUnknown, fmt.Errorf("diagnostics: invalid status %q", s)
}

// Diagnostics is the result record of one check call.
type Diagnostics struct {
	// Status is the overall verdict.
	Status Status

	// Source is the original pattern source.
	Source string

	// Flags is the flag string the pattern was checked under (e.g. "ims").
	Flags string

	// Complexity is the detected complexity class. Nil when unknown/error.
	Complexity *Complexity

	// Attack is the witness attack pattern. Nil unless vulnerable.
	Attack *AttackPattern

	// Hotspot locates the responsible sub-expression. Nil when unavailable.
	Hotspot *Hotspot

	// Checker names the analysis path that produced the verdict:
	// "automaton" or "fuzz".
	Checker string

	// Message is a human-readable explanation of the verdict.
	Message string

	// Error carries the failure description when Status is StatusError.
	Error string
}

// NewSafe builds a safe verdict.
func NewSafe(source, flags, checker string) *Diagnostics {
	c := Safe()
	return &Diagnostics{
		Status:     StatusSafe,
		Source:     source,
		Flags:      flags,
		Complexity: &c,
		Checker:    checker,
		Message:    "no ReDoS vulnerability found",
	}
}

// NewVulnerable builds a vulnerable verdict with its witness.
func NewVulnerable(source, flags, checker string, c Complexity, attack *AttackPattern, hotspot *Hotspot) *Diagnostics {
	return &Diagnostics{
		Status:     StatusVulnerable,
		Source:     source,
		Flags:      flags,
		Complexity: &c,
		Attack:     attack,
		Hotspot:    hotspot,
		Checker:    checker,
		Message:    fmt.Sprintf("vulnerable: worst-case matching time is %s", c.Summary()),
	}
}

// NewUnknown builds an unknown verdict with the reason the analysis gave up.
func NewUnknown(source, flags, checker, message string) *Diagnostics {
	return &Diagnostics{
		Status:  StatusUnknown,
		Source:  source,
		Flags:   flags,
		Checker: checker,
		Message: message,
	}
}

// NewError builds an error verdict.
func NewError(source, flags string, err error) *Diagnostics {
	return &Diagnostics{
		Status:  StatusError,
		Source:  source,
		Flags:   flags,
		Message: "analysis failed",
		Error:   err.Error(),
	}
}

// IsSafe returns true when the verdict is safe.
func (d *Diagnostics) IsSafe() bool { return d.Status == StatusSafe }

// IsVulnerable returns true when the verdict is vulnerable.
func (d *Diagnostics) IsVulnerable() bool { return d.Status == StatusVulnerable }

// jsonComplexity mirrors the stable wire form of Complexity.
type jsonComplexity struct {
	Type    string `json:"type"`
	Degree  *int   `json:"degree"`
	Summary string `json:"summary"`
}

// jsonAttack mirrors the stable wire form of AttackPattern.
type jsonAttack struct {
	Prefix string `json:"prefix"`
	Pump   string `json:"pump"`
	Suffix string `json:"suffix"`
	Base   int    `json:"base"`
	Repeat int    `json:"repeat"`
	String string `json:"string"`
}

// jsonHotspot mirrors the stable wire form of Hotspot.
type jsonHotspot struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// jsonDiagnostics is the stable wire form of Diagnostics.
type jsonDiagnostics struct {
	Status     string          `json:"status"`
	Source     string          `json:"source"`
	Flags      string          `json:"flags"`
	Complexity *jsonComplexity `json:"complexity"`
	Attack     *jsonAttack     `json:"attack"`
	Hotspot    *jsonHotspot    `json:"hotspot"`
	Checker    string          `json:"checker"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
}

// MarshalJSON serializes the diagnostics record with stable field names.
func (d *Diagnostics) MarshalJSON() ([]byte, error) {
	out := jsonDiagnostics{
		Status:  d.Status.String(),
		Source:  d.Source,
		Flags:   d.Flags,
		Checker: d.Checker,
		Message: d.Message,
		Error:   d.Error,
	}
	if d.Complexity != nil {
		jc := jsonComplexity{
			Type:    d.Complexity.Type().String(),
			Summary: d.Complexity.Summary(),
		}
		if d.Complexity.IsPolynomial() {
			deg := d.Complexity.Degree()
			jc.Degree = &deg
		}
		out.Complexity = &jc
	}
	if d.Attack != nil {
		out.Attack = &jsonAttack{
			Prefix: d.Attack.Prefix,
			Pump:   d.Attack.Pump,
			Suffix: d.Attack.Suffix,
			Base:   d.Attack.Base,
			Repeat: d.Attack.Repeat,
			String: d.Attack.String(),
		}
	}
	if d.Hotspot != nil {
		out.Hotspot = &jsonHotspot{
			Start: d.Hotspot.Start,
			End:   d.Hotspot.End,
			Text:  d.Hotspot.Text,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs a diagnostics record from its wire form.
// MarshalJSON followed by UnmarshalJSON yields an equal record in all
// observable fields.
func (d *Diagnostics) UnmarshalJSON(data []byte) error {
	var in jsonDiagnostics
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	status, err := statusFromString(in.Status)
	if err != nil {
		return err
	}
	*d = Diagnostics{
		Status:  status,
		Source:  in.Source,
		Flags:   in.Flags,
		Checker: in.Checker,
		Message: in.Message,
		Error:   in.Error,
	}
	if in.Complexity != nil {
		var c Complexity
		switch in.Complexity.Type {
		case "safe":
			c = Safe()
		case "polynomial":
			deg := 2
			if in.Complexity.Degree != nil {
				deg = *in.Complexity.Degree
			}
			c = Polynomial(deg)
		case "exponential":
			c = Exponential()
		default:
			return fmt.Errorf("diagnostics: invalid complexity type %q", in.Complexity.Type)
		}
		d.Complexity = &c
	}
	if in.Attack != nil {
		d.Attack = &AttackPattern{
			Prefix: in.Attack.Prefix,
			Pump:   in.Attack.Pump,
			Suffix: in.Attack.Suffix,
			Base:   in.Attack.Base,
			Repeat: in.Attack.Repeat,
		}
	}
	if in.Hotspot != nil {
		d.Hotspot = &Hotspot{
			Start: in.Hotspot.Start,
			End:   in.Hotspot.End,
			Text:  in.Hotspot.Text,
		}
	}
	return nil
}

// String returns a one-line summary suitable for logs.
func (d *Diagnostics) String() string {
	if d.Complexity != nil {
		return fmt.Sprintf("Diagnostics{%s, %s, %q}", d.Status, d.Complexity.Summary(), d.Source)
	}
	return fmt.Sprintf("Diagnostics{%s, %q}", d.Status, d.Source)
}
