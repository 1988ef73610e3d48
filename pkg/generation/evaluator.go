package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// Evaluator produces one StopSignal per generated token. It holds no
// per-request state and may be shared by any number of concurrent sessions.
type Evaluator struct {
	timeout       time.Duration
	slowThreshold time.Duration
	slowLog       *rate.Sometimes
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithEvaluationTimeout bounds the wall-clock time of a single stopping
// decision call. Exceeding it stops the request with a timeout fault.
// Zero disables the guard and runs decisions inline.
func WithEvaluationTimeout(timeout time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = timeout
	}
}

// WithSlowEvaluationThreshold logs a (rate-limited) warning whenever a
// decision call takes longer than threshold without faulting.
func WithSlowEvaluationThreshold(threshold time.Duration) Option {
	return func(e *Evaluator) {
		e.slowThreshold = threshold
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder MetricsRecorder) Option {
	return func(e *Evaluator) {
		if recorder != nil {
			e.metrics = recorder
		}
	}
}

// NewEvaluator creates an Evaluator
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:  zap.NewNop(),
		metrics: NopRecorder(),
		slowLog: &rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the configured evaluation timeout
func (e *Evaluator) Timeout() time.Duration {
	return e.timeout
}

// Logger returns the evaluator's logger
func (e *Evaluator) Logger() *zap.Logger {
	return e.logger
}

// Metrics returns the evaluator's metrics recorder
func (e *Evaluator) Metrics() MetricsRecorder {
	return e.metrics
}

// Evaluate decides whether the request behind state must stop after its most
// recent token. Checks run in a fixed priority order, so the reported reason
// does not depend on timing:
//
//  1. token budget exhausted      -> builtin "length"
//  2. last token is a stop token  -> builtin "token"
//  3. a stop string appeared      -> builtin "string" (with MatchIndex)
//  4. the stopping decision fired -> custom; a panic or timeout -> error
//  5. otherwise                   -> continue
//
// Stop tokens and stop strings are ignored until MinTokens tokens exist. The
// state is never modified and a faulted decision is not retried.
func (e *Evaluator) Evaluate(ctx context.Context, state *State, cfg *types.SamplingConfig) types.StopSignal {
	return e.evaluate(ctx, state, cfg, nil)
}

func (e *Evaluator) evaluate(ctx context.Context, state *State, cfg *types.SamplingConfig, inflight *sync.WaitGroup) types.StopSignal {
	if sig, ok := checkBuiltin(state, cfg); ok {
		return sig
	}

	if cfg.StoppingDecision == nil {
		return types.Continue
	}

	start := time.Now()
	stop, fault, err := invoke(ctx, cfg.StoppingDecision, state.Text(), e.timeout, inflight)
	elapsed := time.Since(start)
	e.metrics.ObserveEvaluation(elapsed)

	switch {
	case err != nil:
		return types.ErrorStop(err)
	case fault != nil:
		fault.Step = state.NumTokens()
		e.metrics.RecordFault(fault.Kind)
		return types.ErrorStop(fault)
	}

	if e.slowThreshold > 0 && elapsed > e.slowThreshold {
		e.slowLog.Do(func() {
			e.logger.Warn("slow stopping decision",
				zap.Duration("elapsed", elapsed),
				zap.Duration("threshold", e.slowThreshold),
				zap.Int("step", state.NumTokens()),
			)
		})
	}

	if stop {
		return types.CustomStop()
	}
	return types.Continue
}

// checkBuiltin runs the engine-native stop conditions in priority order.
func checkBuiltin(state *State, cfg *types.SamplingConfig) (types.StopSignal, bool) {
	n := state.NumTokens()

	if cfg.MaxTokens > 0 && n >= cfg.MaxTokens {
		return types.BuiltinStop(types.FinishReasonLength), true
	}

	if n < cfg.MinTokens {
		return types.Continue, false
	}

	if last := state.LastTokenID(); last >= 0 {
		for _, id := range cfg.StopTokenIDs {
			if id == last {
				sig := types.BuiltinStop(types.FinishReasonToken)
				sig.TokenID = last
				return sig, true
			}
		}
	}

	if len(cfg.Stop) > 0 {
		text := state.Text()
		// stop strings completed before MinTokens stay ignored
		if idx, stop := findStopString(text, len(state.LastFragment()), cfg.Stop); idx >= 0 {
			sig := types.BuiltinStop(types.FinishReasonString)
			sig.MatchIndex = idx
			sig.StopString = stop
			return sig, true
		}
	}

	return types.Continue, false
}

// findStopString returns the earliest occurrence of any stop string that
// overlaps the last newLen bytes of text. Earlier text has already been
// searched on previous steps.
func findStopString(text string, newLen int, stops []string) (int, string) {
	best, match := -1, ""
	for _, stop := range stops {
		start := len(text) - newLen - len(stop) + 1
		if start < 0 {
			start = 0
		}
		i := strings.Index(text[start:], stop)
		if i < 0 {
			continue
		}
		if idx := start + i; best < 0 || idx < best {
			best, match = idx, stop
		}
	}
	return best, match
}
