package types

import "reflect"

// StoppingDecision is custom logic that can end a generation request early.
//
// Evaluate receives the full text generated so far for one request (not just the
// newest fragment) and returns true to stop right after the current token.
// Implementations may keep state, but an instance belongs to exactly one request:
// it is called at most once per token, never concurrently with itself, and never
// after the request has finished.
type StoppingDecision interface {
	Evaluate(text string) bool
}

// StoppingDecisionFunc adapts an ordinary function to the StoppingDecision interface.
type StoppingDecisionFunc func(text string) bool

// Evaluate calls f(text).
func (f StoppingDecisionFunc) Evaluate(text string) bool {
	return f(text)
}

// StoppingDecisionFactory builds a fresh decision for every request. Use it when a
// SamplingConfig acts as a template shared by many requests.
type StoppingDecisionFactory func() StoppingDecision

// isNilDecision reports whether d carries no usable implementation, including
// an interface holding a nil pointer, func or map.
func isNilDecision(d StoppingDecision) bool {
	if d == nil {
		return true
	}
	v := reflect.ValueOf(d)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
