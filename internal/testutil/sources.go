package testutil

import (
	"context"
	"io"
	"sync/atomic"
	"unicode/utf8"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// ScriptedSource replays a fixed list of tokens, then returns io.EOF.
type ScriptedSource struct {
	tokens []types.Token
	next   int
	closed atomic.Bool

	// CloseErr is returned from Close
	CloseErr error
}

// NewScriptedSource creates a source replaying tokens in order
func NewScriptedSource(tokens ...types.Token) *ScriptedSource {
	return &ScriptedSource{tokens: tokens}
}

// FragmentSource replays fragments with sequential token ids starting at 100
func FragmentSource(fragments ...string) *ScriptedSource {
	tokens := make([]types.Token, len(fragments))
	for i, f := range fragments {
		tokens[i] = types.Token{ID: 100 + i, Text: f}
	}
	return NewScriptedSource(tokens...)
}

// CharSource replays text one character at a time
func CharSource(text string) *ScriptedSource {
	var fragments []string
	for len(text) > 0 {
		_, size := utf8.DecodeRuneInString(text)
		fragments = append(fragments, text[:size])
		text = text[size:]
	}
	return FragmentSource(fragments...)
}

// Next returns the next scripted token
func (s *ScriptedSource) Next(ctx context.Context) (types.Token, error) {
	if err := ctx.Err(); err != nil {
		return types.Token{}, err
	}
	if s.next >= len(s.tokens) {
		return types.Token{}, io.EOF
	}
	tok := s.tokens[s.next]
	s.next++
	return tok, nil
}

// Close marks the source closed
func (s *ScriptedSource) Close() error {
	s.closed.Store(true)
	return s.CloseErr
}

// Closed reports whether Close was called
func (s *ScriptedSource) Closed() bool {
	return s.closed.Load()
}

// Consumed returns how many tokens have been handed out
func (s *ScriptedSource) Consumed() int {
	return s.next
}

// RepeatSource emits the same fragment forever, blocking on nothing. Use it
// with a stop condition or a cancelled context.
type RepeatSource struct {
	Fragment string
	count    atomic.Int64
}

// Next returns another copy of the fragment
func (r *RepeatSource) Next(ctx context.Context) (types.Token, error) {
	if err := ctx.Err(); err != nil {
		return types.Token{}, err
	}
	n := r.count.Add(1)
	return types.Token{ID: int(n), Text: r.Fragment}, nil
}

// Count returns the number of tokens emitted
func (r *RepeatSource) Count() int {
	return int(r.count.Load())
}
