package generate

import "errors"

// Typed generation failures. All are user-visible results, not process
// fatals; callers show a fallback message.
var (
	// ErrQueryTooLong means the assembled prompt cannot fit the context
	// window even with no history. No generation was attempted.
	ErrQueryTooLong = errors.New("query too long for context window")

	// ErrContextFull means history was exhausted after the single trim
	// retry; the conversation must be restarted.
	ErrContextFull = errors.New("context full, start a new conversation")

	// ErrEngineDecode wraps a batch decode failure. Stored history is not
	// affected.
	ErrEngineDecode = errors.New("engine decode failed")
)
