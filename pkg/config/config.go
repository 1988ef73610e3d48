// Package config loads evaluator settings and named sampling profiles from
// YAML files.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cecil-the-coder/stopkit/pkg/generation"
	"github.com/cecil-the-coder/stopkit/pkg/stopping"
	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// File is the complete configuration document
type File struct {
	Evaluator EvaluatorConfig    `yaml:"evaluator,omitempty"`
	Profiles  map[string]Profile `yaml:"profiles"`
}

// EvaluatorConfig holds the settings shared by every request
type EvaluatorConfig struct {
	// Upper bound for one stopping decision call, e.g. "50ms". Empty means no limit.
	EvaluationTimeout Duration `yaml:"evaluation_timeout,omitempty"`

	// Calls slower than this are logged, e.g. "5ms". Empty disables the warning.
	SlowEvaluationThreshold Duration `yaml:"slow_evaluation_threshold,omitempty"`

	// Maximum requests run at once by a batch
	Concurrency int `yaml:"concurrency,omitempty"`
}

// Profile is a named sampling configuration
type Profile struct {
	Temperature               float64        `yaml:"temperature,omitempty"`
	MaxTokens                 int            `yaml:"max_tokens,omitempty"`
	MinTokens                 int            `yaml:"min_tokens,omitempty"`
	Stop                      []string       `yaml:"stop,omitempty"`
	StopTokenIDs              []int          `yaml:"stop_token_ids,omitempty"`
	IncludeStopStringInOutput bool           `yaml:"include_stop_str_in_output,omitempty"`
	Stopper                   *StopperConfig `yaml:"stopper,omitempty"`
}

// StopperConfig names a registered stopper and its parameters
type StopperConfig struct {
	Type   string          `yaml:"type"`
	Params stopping.Params `yaml:"params,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in YAML
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses a YAML configuration file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML configuration document
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Evaluator.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Profile returns the named profile
func (f *File) Profile(name string) (Profile, error) {
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, types.NewConfigurationError("profile", fmt.Sprintf("unknown profile %q", name))
	}
	return p, nil
}

// ProfileNames returns the profile names in sorted order
func (f *File) ProfileNames() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the evaluator settings
func (c EvaluatorConfig) Validate() error {
	if c.EvaluationTimeout < 0 {
		return types.NewConfigurationError("evaluator.evaluation_timeout", "must be non-negative")
	}
	if c.SlowEvaluationThreshold < 0 {
		return types.NewConfigurationError("evaluator.slow_evaluation_threshold", "must be non-negative")
	}
	if c.Concurrency < 0 {
		return types.NewConfigurationError("evaluator.concurrency", "must be non-negative")
	}
	return nil
}

// Options converts the settings into evaluator options
func (c EvaluatorConfig) Options() []generation.Option {
	return []generation.Option{
		generation.WithEvaluationTimeout(time.Duration(c.EvaluationTimeout)),
		generation.WithSlowEvaluationThreshold(time.Duration(c.SlowEvaluationThreshold)),
	}
}

// SamplingConfig builds a validated sampling configuration. A configured
// stopper becomes a factory from reg, so every request gets its own
// instance; a nil reg means stopping.DefaultRegistry().
func (p Profile) SamplingConfig(reg *stopping.Registry) (types.SamplingConfig, error) {
	cfg := types.SamplingConfig{
		Temperature:               p.Temperature,
		MaxTokens:                 p.MaxTokens,
		MinTokens:                 p.MinTokens,
		Stop:                      append([]string(nil), p.Stop...),
		StopTokenIDs:              append([]int(nil), p.StopTokenIDs...),
		IncludeStopStringInOutput: p.IncludeStopStringInOutput,
	}

	if p.Stopper != nil {
		if reg == nil {
			reg = stopping.DefaultRegistry()
		}
		factory, err := reg.Factory(p.Stopper.Type, p.Stopper.Params)
		if err != nil {
			return types.SamplingConfig{}, err
		}
		cfg.NewStoppingDecision = factory
	}

	if err := cfg.Validate(); err != nil {
		return types.SamplingConfig{}, err
	}
	return cfg, nil
}
