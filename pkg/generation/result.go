package generation

import "github.com/cecil-the-coder/stopkit/pkg/types"

// Result is the terminal outcome of one request.
type Result struct {
	RequestID    string
	Text         string // generated text, trimmed at a matched stop string
	TokenIDs     []int
	FinishReason types.FinishReason
	StopString   string // matched stop string, if FinishReason is "string"
	StopTokenID  int    // matched stop token if FinishReason is "token", otherwise -1
	Steps        int    // tokens processed
	Fault        error  // *types.EvaluationFault when FinishReason is "error"
}

// Stopped reports whether the request ended before exhausting its producer
func (r *Result) Stopped() bool {
	switch r.FinishReason {
	case types.FinishReasonNone, types.FinishReasonStop:
		return false
	}
	return true
}
