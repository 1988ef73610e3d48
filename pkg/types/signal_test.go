package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopSignal_Constructors(t *testing.T) {
	tests := []struct {
		name   string
		signal StopSignal
		kind   SignalKind
		reason FinishReason
		stop   bool
		str    string
	}{
		{"continue", Continue, SignalContinue, FinishReasonNone, false, "continue"},
		{"builtin length", BuiltinStop(FinishReasonLength), SignalStopBuiltin, FinishReasonLength, true, "builtin(length)"},
		{"custom", CustomStop(), SignalStopCustom, FinishReasonCustom, true, "custom(custom)"},
		{"error", ErrorStop(errors.New("x")), SignalError, FinishReasonError, true, "error(error)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.signal.Kind)
			assert.Equal(t, tt.reason, tt.signal.Reason)
			assert.Equal(t, tt.stop, tt.signal.IsStop())
			assert.Equal(t, -1, tt.signal.MatchIndex)
			assert.Equal(t, tt.str, tt.signal.String())
		})
	}
}

func TestSignalKind_String(t *testing.T) {
	assert.Equal(t, "builtin", SignalStopBuiltin.String())
	assert.Equal(t, "SignalKind(9)", SignalKind(9).String())
}

func TestChatCompletionChunk_DeltaContent(t *testing.T) {
	withDelta := ChatCompletionChunk{Content: "fallback", Choices: []ChatChoice{{Delta: ChatMessage{Content: "delta"}}}}
	assert.Equal(t, "delta", withDelta.DeltaContent())

	emptyDelta := ChatCompletionChunk{Content: "fallback", Choices: []ChatChoice{{}}}
	assert.Equal(t, "fallback", emptyDelta.DeltaContent())

	assert.Equal(t, "", ChatCompletionChunk{}.DeltaContent())
}
