package stopping

import (
	"math"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// Params holds stopper parameters as decoded from YAML or JSON.
type Params map[string]interface{}

// String returns a required, non-empty string parameter
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", missing(key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalid(key, "must be a non-empty string")
	}
	return s, nil
}

// Int returns a required integer parameter. Whole floats are accepted, since
// JSON decodes every number as float64.
func (p Params) Int(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, missing(key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), nil
		}
	}
	return 0, invalid(key, "must be an integer")
}

// IntOrDefault returns an integer parameter, or def when the key is absent
func (p Params) IntOrDefault(key string, def int) (int, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.Int(key)
}

// Strings returns a required list of strings
func (p Params) Strings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, missing(key)
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(key, "must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, invalid(key, "must be a list of strings")
}

func missing(key string) error {
	return types.NewConfigurationError("stopper."+key, "is required")
}

func invalid(key, msg string) error {
	return types.NewConfigurationError("stopper."+key, msg)
}
