package types

// SamplingConfig is the per-request configuration consulted when deciding
// whether generation should stop.
type SamplingConfig struct {
	// Generation parameters
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"` // 0 means no limit
	MinTokens   int     `json:"min_tokens,omitempty" yaml:"min_tokens,omitempty"` // stop tokens/strings are ignored before this many tokens

	// Built-in stop conditions
	Stop                      []string `json:"stop,omitempty" yaml:"stop,omitempty"`
	StopTokenIDs              []int    `json:"stop_token_ids,omitempty" yaml:"stop_token_ids,omitempty"`
	IncludeStopStringInOutput bool     `json:"include_stop_str_in_output,omitempty" yaml:"include_stop_str_in_output,omitempty"`

	// Custom stopping. At most one of the two may be set; neither means no custom stopping.
	// Only pointer decisions are tracked as owned by one active request. A
	// StoppingDecisionFunc closing over mutable state is not, so attach it
	// through WithStoppingDecisionFactory to give every request its own closure.
	StoppingDecision    StoppingDecision        `json:"-" yaml:"-"`
	NewStoppingDecision StoppingDecisionFactory `json:"-" yaml:"-"`
}

// WithTemperature sets the temperature and returns the updated config
func (c SamplingConfig) WithTemperature(value float64) SamplingConfig {
	c.Temperature = value
	return c
}

// WithMaxTokens sets the token budget and returns the updated config
func (c SamplingConfig) WithMaxTokens(value int) SamplingConfig {
	c.MaxTokens = value
	return c
}

// WithMinTokens sets the minimum token count and returns the updated config
func (c SamplingConfig) WithMinTokens(value int) SamplingConfig {
	c.MinTokens = value
	return c
}

// WithStop sets the stop strings and returns the updated config
func (c SamplingConfig) WithStop(stop ...string) SamplingConfig {
	c.Stop = stop
	return c
}

// WithStopTokenIDs sets the stop token ids and returns the updated config
func (c SamplingConfig) WithStopTokenIDs(ids ...int) SamplingConfig {
	c.StopTokenIDs = ids
	return c
}

// WithStoppingDecision attaches a decision instance and returns the updated config
func (c SamplingConfig) WithStoppingDecision(d StoppingDecision) SamplingConfig {
	c.StoppingDecision = d
	return c
}

// WithStoppingDecisionFactory attaches a decision factory and returns the updated config
func (c SamplingConfig) WithStoppingDecisionFactory(f StoppingDecisionFactory) SamplingConfig {
	c.NewStoppingDecision = f
	return c
}

// HasStoppingDecision reports whether custom stopping is configured
func (c *SamplingConfig) HasStoppingDecision() bool {
	return c.StoppingDecision != nil || c.NewStoppingDecision != nil
}

// Validate checks the configuration. It returns a *ConfigurationError describing
// the first problem found, or nil.
func (c *SamplingConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return ErrInvalidTemperature
	}
	if c.MaxTokens < 0 {
		return ErrInvalidMaxTokens
	}
	if c.MinTokens < 0 {
		return ErrInvalidMinTokens
	}
	if c.MaxTokens > 0 && c.MinTokens > c.MaxTokens {
		return ErrMinTokensExceedsMax
	}
	for _, s := range c.Stop {
		if s == "" {
			return ErrEmptyStopString
		}
	}
	for _, id := range c.StopTokenIDs {
		if id < 0 {
			return ErrInvalidStopTokenID
		}
	}
	if c.StoppingDecision != nil && c.NewStoppingDecision != nil {
		return ErrAmbiguousDecision
	}
	if c.StoppingDecision != nil && isNilDecision(c.StoppingDecision) {
		return ErrNilDecision
	}
	return nil
}

// ResolveStoppingDecision returns the decision instance for one request, calling
// the factory if one is configured. It returns nil when no custom stopping is set.
func (c *SamplingConfig) ResolveStoppingDecision() (StoppingDecision, error) {
	if c.NewStoppingDecision != nil {
		d := c.NewStoppingDecision()
		if isNilDecision(d) {
			return nil, ErrFactoryReturnedNil
		}
		return d, nil
	}
	return c.StoppingDecision, nil
}

// ForRequest returns a copy bound to a single request: the decision is resolved
// and the factory cleared. Slices are copied so later edits to the template do
// not reach a running request.
func (c *SamplingConfig) ForRequest() (SamplingConfig, error) {
	if err := c.Validate(); err != nil {
		return SamplingConfig{}, err
	}
	d, err := c.ResolveStoppingDecision()
	if err != nil {
		return SamplingConfig{}, err
	}
	bound := *c
	bound.Stop = append([]string(nil), c.Stop...)
	bound.StopTokenIDs = append([]int(nil), c.StopTokenIDs...)
	bound.StoppingDecision = d
	bound.NewStoppingDecision = nil
	return bound, nil
}
