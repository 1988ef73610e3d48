package generation

import (
	"time"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// MetricsRecorder receives observations from the Evaluator and Sessions.
// Implementations must be safe for concurrent use.
type MetricsRecorder interface {
	// ObserveEvaluation records how long one stopping decision call took
	ObserveEvaluation(duration time.Duration)
	// RecordFinish records why a request finished
	RecordFinish(reason types.FinishReason)
	// RecordFault records a faulted evaluation
	RecordFault(kind types.FaultKind)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvaluation(time.Duration) {}
func (nopRecorder) RecordFinish(types.FinishReason) {}
func (nopRecorder) RecordFault(types.FaultKind) {}

// NopRecorder returns a MetricsRecorder that discards everything
func NopRecorder() MetricsRecorder {
	return nopRecorder{}
}
