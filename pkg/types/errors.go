package types

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a sampling configuration that cannot be admitted.
// It is returned synchronously, before a request starts.
type ConfigurationError struct {
	Field   string // Offending field, e.g. "max_tokens" or "stopping_decision"
	Message string // Human-readable message
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Is matches any ConfigurationError with the same field and message, so the
// package-level values below work with errors.Is.
func (e *ConfigurationError) Is(target error) bool {
	t, ok := target.(*ConfigurationError)
	if !ok {
		return false
	}
	return t.Field == e.Field && t.Message == e.Message
}

// IsConfigurationError checks if an error is (or wraps) a configuration error
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// Common configuration errors
var (
	ErrInvalidTemperature      = NewConfigurationError("temperature", "must be between 0 and 2")
	ErrInvalidMaxTokens        = NewConfigurationError("max_tokens", "must be non-negative")
	ErrInvalidMinTokens        = NewConfigurationError("min_tokens", "must be non-negative")
	ErrMinTokensExceedsMax     = NewConfigurationError("min_tokens", "must not exceed max_tokens")
	ErrEmptyStopString         = NewConfigurationError("stop", "stop strings must not be empty")
	ErrInvalidStopTokenID      = NewConfigurationError("stop_token_ids", "token ids must be non-negative")
	ErrAmbiguousDecision       = NewConfigurationError("stopping_decision", "set either a decision or a factory, not both")
	ErrNilDecision             = NewConfigurationError("stopping_decision", "decision has no evaluate capability (nil value)")
	ErrFactoryReturnedNil      = NewConfigurationError("stopping_decision", "factory returned no decision")
	ErrDecisionAlreadyAttached = NewConfigurationError("stopping_decision", "decision instance is already bound to an active request")
)

// FaultKind categorizes evaluation faults
type FaultKind string

const (
	FaultKindPanic   FaultKind = "panic"
	FaultKindTimeout FaultKind = "timeout"
)

// EvaluationFault records a stopping decision that misbehaved at runtime.
// The affected request is stopped; other requests are not touched.
type EvaluationFault struct {
	RequestID string    // Request the decision belonged to
	Step      int       // 1-based token index at which the evaluation ran
	Kind      FaultKind // What went wrong
	Cause     error     // Panic value or timeout error
}

// Error implements the error interface
func (e *EvaluationFault) Error() string {
	msg := fmt.Sprintf("stopping decision %s at step %d", e.Kind, e.Step)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause for errors.Is/As
func (e *EvaluationFault) Unwrap() error {
	return e.Cause
}

// WithRequestID sets the request ID field and returns the fault for chaining
func (e *EvaluationFault) WithRequestID(requestID string) *EvaluationFault {
	e.RequestID = requestID
	return e
}

// IsEvaluationFault checks if an error is (or wraps) an evaluation fault
func IsEvaluationFault(err error) bool {
	var fault *EvaluationFault
	return errors.As(err, &fault)
}

// ErrEvaluationTimeout is the cause attached to timeout faults
var ErrEvaluationTimeout = errors.New("evaluation exceeded its time limit")
