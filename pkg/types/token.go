package types

import "context"

// Token is one unit emitted by a token producer: its id and its decoded text.
// Text may end in the middle of a multi-byte character.
type Token struct {
	ID   int
	Text string
}

// TokenSource produces the tokens of one request in order. Next returns io.EOF
// once the producer has nothing more to emit.
type TokenSource interface {
	Next(ctx context.Context) (Token, error)
}

// TokenSourceFunc adapts an ordinary function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (Token, error)

// Next calls f(ctx).
func (f TokenSourceFunc) Next(ctx context.Context) (Token, error) {
	return f(ctx)
}
