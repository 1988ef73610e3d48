package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// invoke runs d.Evaluate(text) and converts panics and overruns into faults.
//
// Without a timeout the call runs on the caller's goroutine. With one, it runs
// on its own goroutine and the caller stops waiting once the limit passes; the
// call itself cannot be interrupted, so inflight stays raised until it returns.
func invoke(ctx context.Context, d types.StoppingDecision, text string, timeout time.Duration, inflight *sync.WaitGroup) (bool, *types.EvaluationFault, error) {
	if inflight == nil {
		inflight = new(sync.WaitGroup)
	}
	inflight.Add(1)

	if timeout <= 0 {
		defer inflight.Done()
		stop, fault := callRecovered(d, text)
		return stop, fault, nil
	}

	type outcome struct {
		stop  bool
		fault *types.EvaluationFault
	}
	done := make(chan outcome, 1)
	go func() {
		defer inflight.Done()
		stop, fault := callRecovered(d, text)
		done <- outcome{stop: stop, fault: fault}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.stop, o.fault, nil
	case <-timer.C:
		return false, &types.EvaluationFault{
			Kind:  types.FaultKindTimeout,
			Cause: fmt.Errorf("%w (limit %s)", types.ErrEvaluationTimeout, timeout),
		}, nil
	case <-ctx.Done():
		return false, nil, ctx.Err()
	}
}

func callRecovered(d types.StoppingDecision, text string) (stop bool, fault *types.EvaluationFault) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			stop = false
			fault = &types.EvaluationFault{Kind: types.FaultKindPanic, Cause: cause}
		}
	}()
	return d.Evaluate(text), nil
}
