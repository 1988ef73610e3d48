package testutil

import (
	"errors"
	"io"

	"github.com/cecil-the-coder/stopkit/pkg/types"
)

// MockStream implements types.ChatCompletionStream over canned chunks.
type MockStream struct {
	chunks       []types.ChatCompletionChunk
	currentIndex int
	errorAt      int // -1 for no error, index to error at
	errorMsg     string
	closed       bool
	closeCalls   int

	// CloseErr is returned from Close
	CloseErr error
}

// NewMockStream creates a stream returning chunks, then a Done chunk with io.EOF
func NewMockStream(chunks ...types.ChatCompletionChunk) *MockStream {
	return &MockStream{chunks: chunks, errorAt: -1}
}

// DeltaChunks builds one chunk per delta, OpenAI style
func DeltaChunks(deltas ...string) []types.ChatCompletionChunk {
	chunks := make([]types.ChatCompletionChunk, len(deltas))
	for i, d := range deltas {
		chunks[i] = types.ChatCompletionChunk{
			ID:      "chunk",
			Choices: []types.ChatChoice{{Delta: types.ChatMessage{Role: "assistant", Content: d}}},
		}
	}
	return chunks
}

// FailAt makes Next return an error with msg when it reaches index
func (m *MockStream) FailAt(index int, msg string) *MockStream {
	m.errorAt = index
	m.errorMsg = msg
	return m
}

// Next returns the next chunk
func (m *MockStream) Next() (types.ChatCompletionChunk, error) {
	if m.closed {
		return types.ChatCompletionChunk{}, io.EOF
	}
	if m.errorAt >= 0 && m.currentIndex == m.errorAt {
		return types.ChatCompletionChunk{}, errors.New(m.errorMsg)
	}
	if m.currentIndex >= len(m.chunks) {
		return types.ChatCompletionChunk{Done: true}, io.EOF
	}
	chunk := m.chunks[m.currentIndex]
	m.currentIndex++
	return chunk, nil
}

// Close closes the stream
func (m *MockStream) Close() error {
	m.closed = true
	m.closeCalls++
	return m.CloseErr
}

// Closed reports whether Close was called
func (m *MockStream) Closed() bool {
	return m.closed
}

// CloseCalls returns how many times Close was called
func (m *MockStream) CloseCalls() int {
	return m.closeCalls
}

// Remaining returns the number of chunks not yet read
func (m *MockStream) Remaining() int {
	return len(m.chunks) - m.currentIndex
}
