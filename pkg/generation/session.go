package generation

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// ErrSessionFinished is returned by Step once the request has stopped
var ErrSessionFinished = errors.New("generation session already finished")

// Session is the output-processing pipeline of a single request. It owns the
// request's State and its stopping decision instance, and it stops calling the
// decision the moment the request ends.
type Session struct {
	mu sync.Mutex

	id        string
	cfg       types.SamplingConfig
	state     *State
	evaluator *Evaluator
	logger    *zap.Logger

	steps      int
	finished   bool
	lastSignal types.StopSignal
	reason     types.FinishReason
	fault      error

	inflight sync.WaitGroup
	released chan struct{}
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithRequestID overrides the generated request id
func WithRequestID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession validates cfg and binds it to a new request. A configured
// decision factory is called exactly once here.
func NewSession(cfg *types.SamplingConfig, evaluator *Evaluator, opts ...SessionOption) (*Session, error) {
	bound, err := cfg.ForRequest()
	if err != nil {
		return nil, err
	}
	if evaluator == nil {
		evaluator = NewEvaluator()
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        bound,
		state:      NewState(),
		evaluator:  evaluator,
		lastSignal: types.Continue,
		released:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = evaluator.Logger().With(zap.String("request_id", s.id))
	return s, nil
}

// ID returns the request id
func (s *Session) ID() string {
	return s.id
}

// Decision returns the decision instance bound to this request, or nil when
// none is attached or the request has finished.
func (s *Session) Decision() types.StoppingDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.StoppingDecision
}

// Step appends one token and returns the stop signal for it.
//
// A cancelled ctx finishes the request as aborted without evaluating anything;
// the ctx error is returned. After the request has stopped, Step returns
// ErrSessionFinished and never reaches the decision again.
func (s *Session) Step(ctx context.Context, tokenID int, fragment string) (types.StopSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return s.lastSignal, ErrSessionFinished
	}
	if err := ctx.Err(); err != nil {
		sig := types.AbortStop(err)
		s.finish(types.FinishReasonAborted, sig)
		return sig, err
	}

	s.state.Append(tokenID, fragment)
	s.steps++

	sig := s.evaluator.evaluate(ctx, s.state, &s.cfg, &s.inflight)
	if sig.Kind == types.SignalError {
		var fault *types.EvaluationFault
		if !errors.As(sig.Err, &fault) {
			// context ended while the decision was running
			sig = types.AbortStop(sig.Err)
			s.finish(types.FinishReasonAborted, sig)
			return sig, sig.Err
		}
		fault.RequestID = s.id
		s.fault = fault
		s.logger.Error("stopping decision faulted, stopping request",
			zap.Int("step", fault.Step),
			zap.String("fault_kind", string(fault.Kind)),
			zap.Error(fault.Cause),
		)
	}

	s.lastSignal = sig
	if sig.IsStop() {
		s.finish(sig.Reason, sig)
	}
	return sig, nil
}

// Finish ends the request for a reason decided outside the evaluator, such as
// the token producer running dry. It is a no-op once finished.
func (s *Session) Finish(reason types.FinishReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished {
		s.finish(reason, s.lastSignal)
	}
}

// Abort ends the request as cancelled by the caller
func (s *Session) Abort() {
	s.Finish(types.FinishReasonAborted)
}

// Finished reports whether the request has stopped
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Released returns a channel closed once the request has finished and no call
// into its stopping decision is still running. A call abandoned by the
// evaluation timeout keeps the channel open until it returns.
func (s *Session) Released() <-chan struct{} {
	return s.released
}

// Text returns the cumulative text seen by the evaluator so far
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Text()
}

// Result returns the outcome of the request. Before the request finishes it
// reports the text so far and an empty finish reason.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopTokenID := -1
	if s.reason == types.FinishReasonToken {
		stopTokenID = s.lastSignal.TokenID
	}
	return &Result{
		RequestID:    s.id,
		Text:         s.outputText(),
		TokenIDs:     s.state.TokenIDs(),
		FinishReason: s.reason,
		StopString:   s.lastSignal.StopString,
		StopTokenID:  stopTokenID,
		Steps:        s.steps,
		Fault:        s.fault,
	}
}

// outputText applies the stop-string trimming policy to the cumulative text.
func (s *Session) outputText() string {
	text := s.state.Text()
	if s.reason != types.FinishReasonString || s.lastSignal.MatchIndex < 0 {
		return text
	}
	end := s.lastSignal.MatchIndex
	if s.cfg.IncludeStopStringInOutput {
		end += len(s.lastSignal.StopString)
	}
	if end > len(text) {
		return text
	}
	return text[:end]
}

func (s *Session) finish(reason types.FinishReason, sig types.StopSignal) {
	s.finished = true
	s.reason = reason
	s.lastSignal = sig
	s.state.Flush()
	s.cfg.StoppingDecision = nil
	s.evaluator.Metrics().RecordFinish(reason)

	s.logger.Debug("request finished",
		zap.String("finish_reason", reason.String()),
		zap.Int("steps", s.steps),
	)

	go func() {
		s.inflight.Wait()
		close(s.released)
	}()
}
