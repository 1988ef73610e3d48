package stopping

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// Constructor builds a new decision from configuration parameters
type Constructor func(params Params) (types.StoppingDecision, error)

// Registry maps stopper type names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with the built-in stoppers registered
// under "length", "pattern", "conditional", "regex" and "count".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("length", newLength)
	r.MustRegister("pattern", newPattern)
	r.MustRegister("conditional", newConditional)
	r.MustRegister("regex", newRegex)
	r.MustRegister("count", newCount)
	return r
}

// Register adds a constructor. Names must be unique.
func (r *Registry) Register(name string, c Constructor) error {
	if name == "" {
		return fmt.Errorf("stopper name is required")
	}
	if c == nil {
		return fmt.Errorf("stopper %q: constructor is required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("stopper %q already registered", name)
	}
	r.constructors[name] = c
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(name string, c Constructor) {
	if err := r.Register(name, c); err != nil {
		panic(err)
	}
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds one decision
func (r *Registry) New(name string, params Params) (types.StoppingDecision, error) {
	r.mu.RLock()
	c, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewConfigurationError("stopper.type", fmt.Sprintf("unknown stopper %q", name))
	}
	d, err := c(params)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, types.ErrFactoryReturnedNil
	}
	return d, nil
}

// Factory returns a factory building a fresh decision per request. The
// parameters are checked once here, so bad configuration fails before any
// request is admitted.
func (r *Registry) Factory(name string, params Params) (types.StoppingDecisionFactory, error) {
	if _, err := r.New(name, params); err != nil {
		return nil, err
	}
	return func() types.StoppingDecision {
		d, err := r.New(name, params)
		if err != nil {
			return nil
		}
		return d
	}, nil
}

func newLength(p Params) (types.StoppingDecision, error) {
	n, err := p.Int("max_length")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, types.NewConfigurationError("stopper.max_length", "must be non-negative")
	}
	return NewLengthStopper(n), nil
}

func newPattern(p Params) (types.StoppingDecision, error) {
	patterns, err := p.Strings("patterns")
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, types.NewConfigurationError("stopper.patterns", "at least one pattern is required")
	}
	for _, pattern := range patterns {
		if pattern == "" {
			return nil, types.NewConfigurationError("stopper.patterns", "patterns must not be empty")
		}
	}
	return NewPatternStopper(patterns...), nil
}

func newConditional(p Params) (types.StoppingDecision, error) {
	marker, err := p.String("marker")
	if err != nil {
		return nil, err
	}
	minLength, err := p.IntOrDefault("min_length", 0)
	if err != nil {
		return nil, err
	}
	return NewConditionalStopper(marker, minLength), nil
}

func newRegex(p Params) (types.StoppingDecision, error) {
	expr, err := p.String("pattern")
	if err != nil {
		return nil, err
	}
	return NewRegexStopper(expr)
}

func newCount(p Params) (types.StoppingDecision, error) {
	marker, err := p.String("marker")
	if err != nil {
		return nil, err
	}
	limit, err := p.IntOrDefault("limit", 1)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, types.NewConfigurationError("stopper.limit", "must be at least 1")
	}
	return NewCountStopper(marker, limit), nil
}
