package types

import "fmt"

// FinishReason explains why a request stopped generating.
type FinishReason string

const (
	FinishReasonNone    FinishReason = ""
	FinishReasonLength  FinishReason = "length"  // token budget exhausted
	FinishReasonToken   FinishReason = "token"   // a stop token id was emitted
	FinishReasonString  FinishReason = "string"  // a stop string appeared in the text
	FinishReasonCustom  FinishReason = "custom"  // the stopping decision returned true
	FinishReasonError   FinishReason = "error"   // the stopping decision faulted
	FinishReasonStop    FinishReason = "stop"    // the token producer ended on its own
	FinishReasonAborted FinishReason = "aborted" // the caller cancelled the request
)

// String returns the string representation of the finish reason
func (r FinishReason) String() string {
	return string(r)
}

// SignalKind is the outcome category of one evaluation step.
type SignalKind int

const (
	SignalContinue SignalKind = iota
	SignalStopBuiltin
	SignalStopCustom
	SignalError
)

// String returns the string representation of the signal kind
func (k SignalKind) String() string {
	switch k {
	case SignalContinue:
		return "continue"
	case SignalStopBuiltin:
		return "builtin"
	case SignalStopCustom:
		return "custom"
	case SignalError:
		return "error"
	default:
		return fmt.Sprintf("SignalKind(%d)", int(k))
	}
}

// StopSignal is the unified stop decision for one generation step. It is
// produced once per emitted token and consumed immediately.
type StopSignal struct {
	Kind   SignalKind
	Reason FinishReason

	// Set for FinishReasonString: the matched stop string and the byte offset of
	// its first occurrence in the cumulative text. MatchIndex is -1 otherwise.
	StopString string
	MatchIndex int

	// Set for FinishReasonToken
	TokenID int

	// Set for SignalError, always an *EvaluationFault or a context error
	Err error
}

// Continue is the signal for a step that does not stop the request
var Continue = StopSignal{Kind: SignalContinue, MatchIndex: -1}

// BuiltinStop creates a signal for an engine-native stop condition
func BuiltinStop(reason FinishReason) StopSignal {
	return StopSignal{Kind: SignalStopBuiltin, Reason: reason, MatchIndex: -1}
}

// CustomStop creates a signal for a stopping decision that returned true
func CustomStop() StopSignal {
	return StopSignal{Kind: SignalStopCustom, Reason: FinishReasonCustom, MatchIndex: -1}
}

// ErrorStop creates a signal for a faulted evaluation
func ErrorStop(err error) StopSignal {
	return StopSignal{Kind: SignalError, Reason: FinishReasonError, MatchIndex: -1, Err: err}
}

// AbortStop creates a signal for a request cancelled by its caller
func AbortStop(err error) StopSignal {
	return StopSignal{Kind: SignalError, Reason: FinishReasonAborted, MatchIndex: -1, Err: err}
}

// IsStop reports whether the request must stop after this step
func (s StopSignal) IsStop() bool {
	return s.Kind != SignalContinue
}

// String returns a compact description for logs
func (s StopSignal) String() string {
	if s.Kind == SignalContinue {
		return "continue"
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
}
