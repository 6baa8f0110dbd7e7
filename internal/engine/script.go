package engine

import (
	"errors"
	"strings"
	"sync"
)

// Script is a deterministic in-memory Engine for tests. Tokenization is a
// whitespace proxy (one token per word); generation replays a fixed list of
// token texts and then signals end-of-sequence.
type Script struct {
	// Window is the context window size. Zero means 4096.
	Window int

	// Output is the token-text sequence SampleNext walks through.
	Output []string

	// FailAtBatch makes the Nth DecodeBatch call fail (0-based).
	// Negative means never fail.
	FailAtBatch int

	mu         sync.Mutex
	vocab      map[string]Token
	words      []string
	pos        int
	batchCalls int
}

const scriptEOS Token = -1

// NewScript builds a Script that emits the given token texts.
func NewScript(window int, output ...string) *Script {
	return &Script{Window: window, Output: output, FailAtBatch: -1}
}

func (s *Script) Tokenize(text string) ([]Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vocab == nil {
		s.vocab = make(map[string]Token)
	}
	fields := strings.Fields(text)
	tokens := make([]Token, 0, len(fields))
	for _, w := range fields {
		id, ok := s.vocab[w]
		if !ok {
			id = Token(len(s.words))
			s.vocab[w] = id
			s.words = append(s.words, w)
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

func (s *Script) ContextWindow() int {
	if s.Window <= 0 {
		return 4096
	}
	return s.Window
}

func (s *Script) DecodeBatch(tokens []Token, pos int, wantLogits bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAtBatch >= 0 && s.batchCalls == s.FailAtBatch {
		s.batchCalls++
		return errors.New("scripted decode failure")
	}
	s.batchCalls++
	return nil
}

func (s *Script) SampleNext() (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.Output) {
		return scriptEOS, nil
	}
	text := s.Output[s.pos]
	s.pos++
	id, ok := s.vocab[text]
	if !ok {
		if s.vocab == nil {
			s.vocab = make(map[string]Token)
		}
		id = Token(len(s.words))
		s.vocab[text] = id
		s.words = append(s.words, text)
	}
	return id, nil
}

func (s *Script) TokenText(t Token) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t == scriptEOS || int(t) >= len(s.words) || t < 0 {
		return ""
	}
	return s.words[t]
}

func (s *Script) IsEOS(t Token) bool {
	return t == scriptEOS
}

// BatchCalls reports how many DecodeBatch calls the script has served.
func (s *Script) BatchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls
}
