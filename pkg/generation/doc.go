// Package generation holds the per-request side of custom stopping.
//
// A State accumulates the text of one request as tokens arrive. The Evaluator
// turns a State and a types.SamplingConfig into one types.StopSignal per token,
// checking the built-in conditions first (token budget, stop token ids, stop
// strings) and the attached types.StoppingDecision last. A Session ties the
// two together for a single request and produces its Result.
//
// The Evaluator is safe for concurrent use; State and Session belong to one
// request each.
package generation
