// Package testutil provides shared test doubles for the stopkit test suite:
// stopping decisions with observable or broken behavior, scripted token
// sources and mock provider streams.
package testutil

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// CapturingDecision records every text it is evaluated with and delegates the
// verdict to StopWhen (never stops when nil).
type CapturingDecision struct {
	mu       sync.Mutex
	texts    []string
	StopWhen func(text string) bool
}

// NewCapturingDecision creates a CapturingDecision with the given predicate
func NewCapturingDecision(stopWhen func(text string) bool) *CapturingDecision {
	return &CapturingDecision{StopWhen: stopWhen}
}

// Evaluate records text and applies StopWhen
func (c *CapturingDecision) Evaluate(text string) bool {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	if c.StopWhen == nil {
		return false
	}
	return c.StopWhen(text)
}

// Texts returns a copy of every evaluated text, in call order
func (c *CapturingDecision) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

// Calls returns the number of evaluations so far
func (c *CapturingDecision) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts)
}

// ErrInjected is the panic value used by FaultyDecision
var ErrInjected = errors.New("injected stopping decision failure")

// FaultyDecision returns false until call number PanicAt (1-based), where it
// panics with ErrInjected.
type FaultyDecision struct {
	PanicAt int
	calls   atomic.Int64
}

// Evaluate counts the call and panics when configured to
func (f *FaultyDecision) Evaluate(string) bool {
	n := f.calls.Add(1)
	if int(n) == f.PanicAt {
		panic(ErrInjected)
	}
	return false
}

// Calls returns the number of evaluations so far
func (f *FaultyDecision) Calls() int {
	return int(f.calls.Load())
}

// SlowDecision sleeps for Delay on every call and tracks concurrent callers.
type SlowDecision struct {
	Delay time.Duration

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
	returned  atomic.Int64
}

// Evaluate sleeps and returns false
func (s *SlowDecision) Evaluate(string) bool {
	s.calls.Add(1)
	n := s.active.Add(1)
	for {
		prev := s.maxActive.Load()
		if n <= prev || s.maxActive.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(s.Delay)
	s.active.Add(-1)
	s.returned.Add(1)
	return false
}

// Calls returns the number of evaluations started
func (s *SlowDecision) Calls() int {
	return int(s.calls.Load())
}

// Returned returns the number of evaluations that have completed
func (s *SlowDecision) Returned() int {
	return int(s.returned.Load())
}

// MaxConcurrent returns the highest number of overlapping calls observed
func (s *SlowDecision) MaxConcurrent() int {
	return int(s.maxActive.Load())
}
