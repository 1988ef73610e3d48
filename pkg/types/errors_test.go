package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigurationError
		expected string
	}{
		{
			name:     "with field",
			err:      NewConfigurationError("max_tokens", "must be non-negative"),
			expected: "invalid configuration: max_tokens: must be non-negative",
		},
		{
			name:     "without field",
			err:      NewConfigurationError("", "broken"),
			expected: "invalid configuration: broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfigurationError_Is(t *testing.T) {
	wrapped := fmt.Errorf("admit: %w", NewConfigurationError("max_tokens", "must be non-negative"))

	assert.True(t, errors.Is(wrapped, ErrInvalidMaxTokens))
	assert.False(t, errors.Is(wrapped, ErrInvalidMinTokens))
	assert.True(t, IsConfigurationError(wrapped))
	assert.False(t, IsConfigurationError(errors.New("plain")))
}

func TestEvaluationFault_Error(t *testing.T) {
	fault := &EvaluationFault{Step: 2, Kind: FaultKindPanic, Cause: errors.New("boom")}
	assert.Equal(t, "stopping decision panic at step 2: boom", fault.Error())

	fault.WithRequestID("req-1")
	assert.Equal(t, "[req-1] stopping decision panic at step 2: boom", fault.Error())
}

func TestEvaluationFault_Unwrap(t *testing.T) {
	fault := &EvaluationFault{Step: 1, Kind: FaultKindTimeout, Cause: ErrEvaluationTimeout}
	wrapped := fmt.Errorf("request failed: %w", fault)

	assert.True(t, errors.Is(wrapped, ErrEvaluationTimeout))
	assert.True(t, IsEvaluationFault(wrapped))
	assert.False(t, IsEvaluationFault(ErrEvaluationTimeout))
}
