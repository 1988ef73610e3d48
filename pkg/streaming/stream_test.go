package streaming

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cecil-the-coder/stopkit/internal/testutil"
	"github.com/cecil-the-coder/stopkit/pkg/generation"
	"github.com/cecil-the-coder/stopkit/pkg/types"
)

func newStream(t *testing.T, cfg types.SamplingConfig, upstream types.ChatCompletionStream) *StoppingStream {
	t.Helper()
	session, err := generation.NewSession(&cfg, nil)
	require.NoError(t, err)
	s, err := NewStoppingStream(StoppingStreamConfig{Stream: upstream, Session: session})
	require.NoError(t, err)
	return s
}

// drain reads until the stream reports an error and returns the streamed text.
func drain(t *testing.T, s *StoppingStream) (string, []types.ChatCompletionChunk, error) {
	t.Helper()
	var text string
	var chunks []types.ChatCompletionChunk
	for i := 0; i < 100; i++ {
		chunk, err := s.Next()
		if err != nil {
			return text, chunks, err
		}
		chunks = append(chunks, chunk)
		text += chunk.DeltaContent()
		if chunk.Done {
			_, err = s.Next()
			return text, chunks, err
		}
	}
	t.Fatal("stream did not end")
	return "", nil, nil
}

func TestNewStoppingStream_Validation(t *testing.T) {
	session, err := generation.NewSession(&types.SamplingConfig{}, nil)
	require.NoError(t, err)

	_, err = NewStoppingStream(StoppingStreamConfig{Session: session})
	assert.True(t, types.IsConfigurationError(err))

	_, err = NewStoppingStream(StoppingStreamConfig{Stream: testutil.NewMockStream()})
	assert.True(t, types.IsConfigurationError(err))
}

func TestStoppingStream_PassThrough(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("Hello", ", ", "world")...)
	s := newStream(t, types.SamplingConfig{}, upstream)

	text, chunks, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Hello, world", text)
	assert.Len(t, chunks, 3)
	assert.Equal(t, types.FinishReasonStop, s.Result().FinishReason)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, upstream.CloseCalls())
}

func TestStoppingStream_CustomStop(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("one ", "two ", "three ", "four")...)
	decision := testutil.NewCapturingDecision(func(text string) bool { return len(text) > 5 })
	s := newStream(t, types.SamplingConfig{}.WithStoppingDecision(decision), upstream)

	text, chunks, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "one two ", text)
	require.Len(t, chunks, 2)

	last := chunks[1]
	assert.True(t, last.Done)
	assert.Equal(t, "custom", last.Choices[0].FinishReason)

	assert.True(t, upstream.Closed())
	assert.Equal(t, 2, upstream.Remaining())
	assert.Equal(t, 2, decision.Calls())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, upstream.CloseCalls())
}

func TestStoppingStream_StopStringTrimsChunk(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("```json\n{}", "\n```\nmore", " text")...)
	s := newStream(t, types.SamplingConfig{}.WithStop("\n```"), upstream)

	text, chunks, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "```json\n{}", text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "string", chunks[1].Choices[0].FinishReason)
	assert.Equal(t, "\n```", s.Result().StopString)
}

func TestStoppingStream_ChunkContentFallback(t *testing.T) {
	upstream := testutil.NewMockStream(
		types.ChatCompletionChunk{Content: "abc"},
		types.ChatCompletionChunk{Content: "STOPdef"},
	)
	s := newStream(t, types.SamplingConfig{}.WithStop("STOP"), upstream)

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "abc", first.Content)

	second, err := s.Next()
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.Equal(t, "", second.Content)
}

func TestStoppingStream_StopTokensNeverMatch(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a", "b")...)
	s := newStream(t, types.SamplingConfig{}.WithStopTokenIDs(0, 1, 2), upstream)

	text, _, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ab", text)
}

func TestStoppingStream_FaultEndsStream(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a", "b", "c")...)
	s := newStream(t, types.SamplingConfig{}.WithStoppingDecision(&testutil.FaultyDecision{PanicAt: 2}), upstream)

	_, chunks, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, chunks, 2)
	assert.Equal(t, "error", chunks[1].Choices[0].FinishReason)
	assert.True(t, types.IsEvaluationFault(s.Result().Fault))
	assert.True(t, upstream.Closed())
}

func TestStoppingStream_UpstreamError(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a", "b")...).FailAt(1, "connection reset")
	s := newStream(t, types.SamplingConfig{}, upstream)

	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, types.FinishReasonError, s.Result().FinishReason)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStoppingStream_CancelledContext(t *testing.T) {
	session, err := generation.NewSession(&types.SamplingConfig{}, nil)
	require.NoError(t, err)
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a")...)
	s, err := NewStoppingStream(StoppingStreamConfig{
		Stream:  upstream,
		Session: session,
		Context: testutil.CancelledContext(t),
	})
	require.NoError(t, err)

	chunk, err := s.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, chunk.Done)
	assert.Equal(t, types.FinishReasonAborted, s.Result().FinishReason)
	assert.True(t, upstream.Closed())
}

func TestStoppingStream_CloseAbortsRunningRequest(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a", "b")...)
	s := newStream(t, types.SamplingConfig{}, upstream)

	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, types.FinishReasonAborted, s.Result().FinishReason)
	assert.True(t, upstream.Closed())

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStoppingStream_CloseReportsUpstreamError(t *testing.T) {
	upstream := testutil.NewMockStream(testutil.DeltaChunks("a", "STOP", "b")...)
	upstream.CloseErr = errors.New("connection reset by peer")
	s := newStream(t, types.SamplingConfig{}.WithStop("STOP"), upstream)

	_, chunks, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, chunks, 2)
	assert.True(t, upstream.Closed())

	assert.ErrorIs(t, s.Close(), upstream.CloseErr)
	assert.NoError(t, s.Close(), "the error is reported once")
	assert.Equal(t, 1, upstream.CloseCalls())
}
