// Package types defines the core types and interfaces for custom stopping of
// token generation: the StoppingDecision contract, the per-request
// SamplingConfig it attaches to, the StopSignal produced for every generated
// token, the error taxonomy, and the streaming chunk types the stream adapter
// works with.
package types
