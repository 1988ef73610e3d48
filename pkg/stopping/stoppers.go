// Package stopping provides ready-made stopping decisions and a registry that
// builds them by name, so sampling profiles can refer to them from
// configuration files.
package stopping

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// LengthStopper stops once the text is longer than MaxLength characters.
type LengthStopper struct {
	MaxLength int
}

// NewLengthStopper creates a LengthStopper
func NewLengthStopper(maxLength int) *LengthStopper {
	return &LengthStopper{MaxLength: maxLength}
}

// Evaluate implements types.StoppingDecision
func (s *LengthStopper) Evaluate(text string) bool {
	return utf8.RuneCountInString(text) > s.MaxLength
}

// PatternStopper stops when any of its patterns appears in the text.
type PatternStopper struct {
	Patterns []string
}

// NewPatternStopper creates a PatternStopper
func NewPatternStopper(patterns ...string) *PatternStopper {
	return &PatternStopper{Patterns: patterns}
}

// Evaluate implements types.StoppingDecision
func (s *PatternStopper) Evaluate(text string) bool {
	for _, p := range s.Patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// ConditionalStopper stops when Marker is present and the text has at least
// MinLength characters.
type ConditionalStopper struct {
	Marker    string
	MinLength int
}

// NewConditionalStopper creates a ConditionalStopper
func NewConditionalStopper(marker string, minLength int) *ConditionalStopper {
	return &ConditionalStopper{Marker: marker, MinLength: minLength}
}

// Evaluate implements types.StoppingDecision
func (s *ConditionalStopper) Evaluate(text string) bool {
	return strings.Contains(text, s.Marker) && utf8.RuneCountInString(text) >= s.MinLength
}

// RegexStopper stops when its expression matches the text.
type RegexStopper struct {
	re *regexp.Regexp
}

// NewRegexStopper compiles expr once; it returns a ConfigurationError when
// the expression is invalid.
func NewRegexStopper(expr string) (*RegexStopper, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, types.NewConfigurationError("stopper.pattern", err.Error())
	}
	return &RegexStopper{re: re}, nil
}

// Evaluate implements types.StoppingDecision
func (s *RegexStopper) Evaluate(text string) bool {
	return s.re.MatchString(text)
}

// String returns the expression
func (s *RegexStopper) String() string {
	return s.re.String()
}

// CountStopper stops once Marker has appeared Limit times. It remembers how
// far it has scanned, so each call only looks at text it has not seen yet; an
// instance must therefore serve a single request.
type CountStopper struct {
	Marker string
	Limit  int

	seen    int
	scanned int
}

// NewCountStopper creates a CountStopper
func NewCountStopper(marker string, limit int) *CountStopper {
	return &CountStopper{Marker: marker, Limit: limit}
}

// Evaluate implements types.StoppingDecision
func (s *CountStopper) Evaluate(text string) bool {
	if s.Marker == "" {
		return false
	}
	if len(text) < s.scanned {
		// text only grows within a request; start over if it did not
		s.seen, s.scanned = 0, 0
	}
	for {
		i := strings.Index(text[s.scanned:], s.Marker)
		if i < 0 {
			break
		}
		s.seen++
		s.scanned += i + len(s.Marker)
	}
	// a marker may straddle the next fragment boundary
	if keep := len(s.Marker) - 1; len(text)-keep > s.scanned {
		s.scanned = len(text) - keep
	}
	return s.seen >= s.Limit
}

// Seen returns how many markers have been counted
func (s *CountStopper) Seen() int {
	return s.seen
}
