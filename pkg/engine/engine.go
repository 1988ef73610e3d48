// Package engine drives generation requests end to end: it admits sampling
// configurations, pulls tokens from a source, feeds them through a
// generation.Session and stops the request on the first stop signal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cecil-the-coder/stopkit/pkg/generation"
	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// Engine runs requests against a shared Evaluator. It is safe for concurrent
// use; each request gets its own Session.
type Engine struct {
	evaluator   *generation.Evaluator
	logger      *zap.Logger
	concurrency int

	mu     sync.Mutex
	claims map[types.StoppingDecision]string
}

// Option configures an Engine
type Option func(*Engine)

// WithEvaluator sets the evaluator shared by all requests
func WithEvaluator(evaluator *generation.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = evaluator
	}
}

// WithLogger sets the engine logger. When no evaluator is given the default
// evaluator logs through it too.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConcurrency limits how many requests RunBatch runs at once. Zero or
// less means no limit.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// New creates an Engine
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: zap.NewNop(),
		claims: make(map[types.StoppingDecision]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.evaluator == nil {
		e.evaluator = generation.NewEvaluator(generation.WithLogger(e.logger))
	}
	return e
}

// Evaluator returns the evaluator shared by all requests
func (e *Engine) Evaluator() *generation.Evaluator {
	return e.evaluator
}

// Admit validates cfg and starts a request. Configuration problems are
// returned as *types.ConfigurationError before anything runs. A decision
// instance already bound to an active request is rejected with
// types.ErrDecisionAlreadyAttached.
//
// The caller must drive the returned session to completion, or call Abort,
// so the decision instance is released.
func (e *Engine) Admit(cfg *types.SamplingConfig, opts ...generation.SessionOption) (*generation.Session, error) {
	if cfg == nil {
		return nil, types.NewConfigurationError("", "sampling configuration is required")
	}
	s, err := generation.NewSession(cfg, e.evaluator, opts...)
	if err != nil {
		return nil, err
	}

	if d := s.Decision(); d != nil && claimable(d) {
		if err := e.claim(d, s.ID()); err != nil {
			return nil, err
		}
		go func() {
			<-s.Released()
			e.release(d)
		}()
	}

	e.logger.Debug("request admitted",
		zap.String("request_id", s.ID()),
		zap.Bool("custom_stopping", s.Decision() != nil),
	)
	return s, nil
}

// Run admits cfg and generates from src until a stop signal, the end of the
// source, or cancellation.
//
// A faulted stopping decision is not an error of Run: the request finishes
// with types.FinishReasonError and the fault is in the result. Run returns an
// error for invalid configuration, cancellation and source failures. Sources
// implementing io.Closer are closed before Run returns.
func (e *Engine) Run(ctx context.Context, cfg *types.SamplingConfig, src types.TokenSource, opts ...generation.SessionOption) (res *generation.Result, err error) {
	defer func() {
		err = multierr.Append(err, closeSource(src))
	}()

	if src == nil {
		return nil, types.NewConfigurationError("source", "token source is required")
	}
	s, err := e.Admit(cfg, opts...)
	if err != nil {
		return nil, err
	}

	for {
		tok, nextErr := src.Next(ctx)
		if nextErr != nil {
			return e.endOfSource(ctx, s, nextErr)
		}

		sig, stepErr := s.Step(ctx, tok.ID, tok.Text)
		if stepErr != nil {
			return s.Result(), stepErr
		}
		if sig.IsStop() {
			res := s.Result()
			e.logger.Debug("request stopped",
				zap.String("request_id", res.RequestID),
				zap.String("finish_reason", res.FinishReason.String()),
				zap.Int("steps", res.Steps),
			)
			return res, nil
		}
	}
}

func (e *Engine) endOfSource(ctx context.Context, s *generation.Session, err error) (*generation.Result, error) {
	switch {
	case errors.Is(err, io.EOF):
		s.Finish(types.FinishReasonStop)
		return s.Result(), nil
	case ctx.Err() != nil:
		s.Abort()
		return s.Result(), ctx.Err()
	default:
		s.Finish(types.FinishReasonError)
		e.logger.Warn("token source failed",
			zap.String("request_id", s.ID()),
			zap.Error(err),
		)
		return s.Result(), fmt.Errorf("token source: %w", err)
	}
}

// Job is one request of a batch
type Job struct {
	RequestID string // optional; generated when empty
	Config    *types.SamplingConfig
	Source    types.TokenSource
}

// BatchResult is the outcome of one Job
type BatchResult struct {
	Result *generation.Result
	Err    error
}

// RunBatch runs jobs concurrently and returns their outcomes in job order.
// A failing job never cancels the others.
func (e *Engine) RunBatch(ctx context.Context, jobs []Job) []BatchResult {
	results := make([]BatchResult, len(jobs))

	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, job := range jobs {
		g.Go(func() error {
			res, err := e.Run(ctx, job.Config, job.Source, generation.WithRequestID(job.RequestID))
			results[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ActiveClaims returns the number of decision instances bound to requests
func (e *Engine) ActiveClaims() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.claims)
}

func (e *Engine) claim(d types.StoppingDecision, requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if owner, taken := e.claims[d]; taken {
		e.logger.Warn("stopping decision instance already in use",
			zap.String("request_id", requestID),
			zap.String("owner_request_id", owner),
		)
		return types.ErrDecisionAlreadyAttached
	}
	e.claims[d] = requestID
	return nil
}

func (e *Engine) release(d types.StoppingDecision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.claims, d)
}

// claimable reports whether d has pointer identity. Value decisions are
// copied into each request and cannot be shared.
func claimable(d types.StoppingDecision) bool {
	return reflect.ValueOf(d).Kind() == reflect.Ptr
}

func closeSource(src types.TokenSource) error {
	if c, ok := src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("closing token source: %w", err)
		}
	}
	return nil
}
