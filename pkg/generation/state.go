package generation

import (
	"strings"
	"unicode/utf8"
)

// State accumulates the generated output of one request.
//
// Fragments may split a multi-byte UTF-8 character across tokens. State holds
// such a trailing partial sequence back until it is completed, so Text only
// ever contains well-formed characters. Bytes that can never form a valid
// character are released as soon as that is known.
type State struct {
	text     strings.Builder
	pending  []byte
	tokenIDs []int
	lastLen  int
}

// NewState creates an empty State
func NewState() *State {
	return &State{}
}

// Append records one emitted token and its decoded fragment.
func (s *State) Append(tokenID int, fragment string) {
	s.tokenIDs = append(s.tokenIDs, tokenID)

	buf := append(s.pending, fragment...)
	cut := completePrefix(buf)
	s.text.Write(buf[:cut])
	s.lastLen = cut
	s.pending = append(s.pending[:0:0], buf[cut:]...)
}

// Flush releases any held-back bytes. It is called once the request is over.
func (s *State) Flush() {
	if len(s.pending) == 0 {
		return
	}
	s.text.Write(s.pending)
	s.lastLen += len(s.pending)
	s.pending = nil
}

// Text returns the cumulative visible text
func (s *State) Text() string {
	return s.text.String()
}

// LastFragment returns the text made visible by the most recent Append
func (s *State) LastFragment() string {
	text := s.text.String()
	return text[len(text)-s.lastLen:]
}

// NumTokens returns the number of tokens appended so far
func (s *State) NumTokens() int {
	return len(s.tokenIDs)
}

// LastTokenID returns the most recent token id, or -1 before the first token
func (s *State) LastTokenID() int {
	if len(s.tokenIDs) == 0 {
		return -1
	}
	return s.tokenIDs[len(s.tokenIDs)-1]
}

// TokenIDs returns a copy of the emitted token ids
func (s *State) TokenIDs() []int {
	return append([]int(nil), s.tokenIDs...)
}

// Pending reports how many bytes are held back waiting for a character to complete
func (s *State) Pending() int {
	return len(s.pending)
}

// completePrefix returns the length of the longest prefix of buf that does not
// end in an incomplete UTF-8 sequence.
func completePrefix(buf []byte) int {
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(buf[i]) {
			continue
		}
		if utf8.FullRune(buf[i:]) {
			return len(buf)
		}
		return i
	}
	return len(buf)
}
