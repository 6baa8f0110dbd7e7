// Package engine defines the boundary to the opaque local inference
// engine. The core never loads models or configures samplers itself; it
// drives whatever implementation the host process binds.
package engine

// Token is one token id in the engine's vocabulary.
type Token int32

// Engine is the narrow capability the generation controller consumes.
// Implementations process one generation request at a time; callers must
// not issue concurrent decode calls against one instance.
type Engine interface {
	// Tokenize converts text to token ids.
	Tokenize(text string) ([]Token, error)

	// ContextWindow returns the maximum token span the engine attends to.
	ContextWindow() int

	// DecodeBatch feeds tokens starting at position pos. Logits are
	// computed only when wantLogits is set, and only for the final token.
	DecodeBatch(tokens []Token, pos int, wantLogits bool) error

	// SampleNext samples the next token from the last decoded logits.
	SampleNext() (Token, error)

	// TokenText returns the decoded text of a token.
	TokenText(t Token) string

	// IsEOS reports whether the token is the end-of-sequence token.
	IsEOS(t Token) bool
}
