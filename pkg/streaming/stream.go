// Package streaming applies stopping decisions to provider chat completion
// streams.
package streaming

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/cecil-the-coder/stopkit/pkg/generation"
	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// noTokenID marks fragments that come without a token id. Stop token ids
// never match it.
const noTokenID = -1

// StoppingStream wraps a ChatCompletionStream and ends it as soon as the
// request's stop conditions fire.
//
// Every chunk's content is one fragment. When a fragment stops the request the
// chunk is returned with Done set, the finish reason on its first choice and
// its content trimmed at a matched stop string. The upstream stream is then
// closed and later calls to Next return io.EOF.
type StoppingStream struct {
	stream  types.ChatCompletionStream
	session *generation.Session
	ctx     context.Context

	mu       sync.Mutex
	emitted  int // bytes of output text already handed to the caller
	done     bool
	closed   bool
	closeErr error // from closing upstream inside Next, returned by Close
}

// StoppingStreamConfig configures a StoppingStream.
type StoppingStreamConfig struct {
	// Stream to wrap (required)
	Stream types.ChatCompletionStream

	// Session evaluating the streamed text (required)
	Session *generation.Session

	// Context for evaluations (optional, defaults to context.Background())
	Context context.Context
}

// NewStoppingStream creates a new StoppingStream with the given configuration.
func NewStoppingStream(config StoppingStreamConfig) (*StoppingStream, error) {
	if config.Stream == nil {
		return nil, types.NewConfigurationError("stream", "stream is required")
	}
	if config.Session == nil {
		return nil, types.NewConfigurationError("session", "session is required")
	}
	if config.Context == nil {
		config.Context = context.Background()
	}
	return &StoppingStream{
		stream:  config.Stream,
		session: config.Session,
		ctx:     config.Context,
	}, nil
}

// Next returns the next chunk from the stream, cut short when the request
// stops.
func (s *StoppingStream) Next() (types.ChatCompletionChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return types.ChatCompletionChunk{Done: true}, io.EOF
	}

	chunk, err := s.stream.Next()
	if err != nil {
		if errors.Is(err, io.EOF) || chunk.Done {
			s.session.Finish(types.FinishReasonStop)
		} else {
			s.session.Finish(types.FinishReasonError)
		}
		s.done = true
		return chunk, err
	}

	sig, stepErr := s.session.Step(s.ctx, noTokenID, chunk.DeltaContent())
	if stepErr != nil {
		s.stop()
		return types.ChatCompletionChunk{Done: true}, stepErr
	}
	if !sig.IsStop() {
		s.emitted += len(chunk.DeltaContent())
		if chunk.Done {
			s.session.Finish(types.FinishReasonStop)
			s.done = true
		}
		return chunk, nil
	}

	res := s.session.Result()
	content := ""
	if len(res.Text) > s.emitted {
		content = res.Text[s.emitted:]
	}
	s.emitted = len(res.Text)
	setContent(&chunk, content)
	chunk.Done = true
	if len(chunk.Choices) > 0 {
		choices := append([]types.ChatChoice(nil), chunk.Choices...)
		choices[0].FinishReason = string(res.FinishReason)
		chunk.Choices = choices
	}
	s.stop()
	return chunk, nil
}

// Close closes the wrapped stream. A request still running is aborted.
func (s *StoppingStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		s.session.Abort()
		s.done = true
	}
	return s.closeUpstream()
}

// Result returns the outcome of the underlying request
func (s *StoppingStream) Result() *generation.Result {
	return s.session.Result()
}

func (s *StoppingStream) stop() {
	s.done = true
	s.closeErr = s.closeUpstream()
}

func (s *StoppingStream) closeUpstream() error {
	if s.closed {
		err := s.closeErr
		s.closeErr = nil
		return err
	}
	s.closed = true
	return s.stream.Close()
}

// setContent replaces the chunk text where DeltaContent found it.
func setContent(chunk *types.ChatCompletionChunk, content string) {
	if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
		choices := append([]types.ChatChoice(nil), chunk.Choices...)
		choices[0].Delta.Content = content
		chunk.Choices = choices
		return
	}
	chunk.Content = content
}
