// Package generate drives the autoregressive decode loop against the
// inference engine under strict token and structure bounds.
package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/offgridai/aidmate/internal/engine"
)

// Options bound one generation request.
type Options struct {
	// Reserve is the token count held back for generation.
	Reserve int
	// MessageSlack pads the new message's token count during history
	// budgeting.
	MessageSlack int
	// BatchSize is the prefill decode batch size.
	BatchSize int
	// MaxTokens hard-caps generated tokens regardless of bullet count.
	MaxTokens int
	// TargetBullets stops generation once this many bullets complete.
	TargetBullets int
	// MinBullets is the admission threshold for keeping a turn in history.
	MinBullets int
	// TrimThreshold is the fraction of the window above which history is
	// trimmed before generating.
	TrimThreshold float64
}

// DefaultOptions returns the production bounds.
func DefaultOptions() Options {
	return Options{
		Reserve:       200,
		MessageSlack:  50,
		BatchSize:     512,
		MaxTokens:     200,
		TargetBullets: 5,
		MinBullets:    3,
		TrimThreshold: 0.9,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Reserve <= 0 {
		o.Reserve = d.Reserve
	}
	if o.MessageSlack <= 0 {
		o.MessageSlack = d.MessageSlack
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.TargetBullets <= 0 {
		o.TargetBullets = d.TargetBullets
	}
	if o.MinBullets <= 0 {
		o.MinBullets = d.MinBullets
	}
	if o.TrimThreshold <= 0 || o.TrimThreshold >= 1 {
		o.TrimThreshold = d.TrimThreshold
	}
	return o
}

// Turn is one admitted (query, response) pair of recent history.
type Turn struct {
	Query    string
	Response string
}

// Controller owns the generation state machine for one engine instance.
// It is not safe for concurrent use; the engine serializes requests anyway.
type Controller struct {
	eng     engine.Engine
	log     *zap.Logger
	opts    Options
	history []Turn
}

// NewController wraps an engine.
func NewController(eng engine.Engine, log *zap.Logger, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{eng: eng, log: log, opts: opts.withDefaults()}
}

// SeedHistory primes recent history, oldest first.
func (c *Controller) SeedHistory(turns []Turn) {
	c.history = append([]Turn(nil), turns...)
}

// History returns a copy of the admitted turns.
func (c *Controller) History() []Turn {
	return append([]Turn(nil), c.history...)
}

// Generate runs one query through budget check, prefill, and the decode
// loop, returning cleaned output text. Failures are the typed errors in
// errors.go; a structurally malformed response is returned without error
// but excluded from subsequent history.
func (c *Controller) Generate(ctx context.Context, systemPrompt, query string) (string, error) {
	tokens, err := c.budgetedPrompt(systemPrompt, query)
	if err != nil {
		return "", err
	}

	if err := c.prefill(tokens); err != nil {
		return "", err
	}

	raw, err := c.decodeLoop(ctx, len(tokens))
	if err != nil {
		return "", err
	}

	cleaned := Clean(raw)
	if n := CountBullets(cleaned); n >= c.opts.MinBullets {
		c.history = append(c.history, Turn{Query: query, Response: cleaned})
	} else {
		c.log.Warn("malformed response dropped from history",
			zap.Int("bullets", n), zap.Int("required", c.opts.MinBullets))
	}
	return cleaned, nil
}

// budgetedPrompt assembles the prompt within the window, applying the
// single bounded trim-and-retry edge.
func (c *Controller) budgetedPrompt(systemPrompt, query string) ([]engine.Token, error) {
	window := c.eng.ContextWindow()
	trimmed := false

	for {
		prompt, err := c.assemble(systemPrompt, query)
		if err != nil {
			return nil, err
		}
		tokens, err := c.eng.Tokenize(prompt)
		if err != nil {
			return nil, fmt.Errorf("tokenize prompt: %w", err)
		}

		if len(tokens) > window {
			return nil, ErrQueryTooLong
		}
		if float64(len(tokens)) <= c.opts.TrimThreshold*float64(window) {
			return tokens, nil
		}
		if trimmed || len(c.history) < 2 {
			return nil, ErrContextFull
		}
		// Drop the two oldest turns and retry once.
		c.history = c.history[2:]
		trimmed = true
	}
}

// assemble renders system prompt, budget-fitted history, and the query.
// Turns are walked newest-to-oldest for budgeting, then re-ordered
// chronologically in the rendered prompt.
func (c *Controller) assemble(systemPrompt, query string) (string, error) {
	window := c.eng.ContextWindow()

	sysCount, err := c.tokenCount(systemPrompt)
	if err != nil {
		return "", err
	}
	queryCount, err := c.tokenCount(query)
	if err != nil {
		return "", err
	}

	budget := window - c.opts.Reserve - (queryCount + c.opts.MessageSlack) - sysCount

	var included []Turn
	used := 0
	for i := len(c.history) - 1; i >= 0; i-- {
		t := c.history[i]
		n, err := c.tokenCount(renderTurn(t))
		if err != nil {
			return "", err
		}
		if used+n > budget {
			break
		}
		used += n
		included = append(included, t)
	}
	// included is newest-first; restore chronology.
	for i, j := 0, len(included)-1; i < j; i, j = i+1, j-1 {
		included[i], included[j] = included[j], included[i]
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	for _, t := range included {
		b.WriteString(renderTurn(t))
	}
	b.WriteString("User: ")
	b.WriteString(query)
	b.WriteString("\nAssistant:")
	return b.String(), nil
}

func renderTurn(t Turn) string {
	return "User: " + t.Query + "\nAssistant: " + t.Response + "\n"
}

func (c *Controller) tokenCount(text string) (int, error) {
	tokens, err := c.eng.Tokenize(text)
	if err != nil {
		return 0, fmt.Errorf("tokenize: %w", err)
	}
	return len(tokens), nil
}

// prefill decodes the prompt in fixed-size batches; logits only for the
// final token of the final batch. Batch slices are scoped to one call so
// nothing outlives an error path.
func (c *Controller) prefill(tokens []engine.Token) error {
	size := c.opts.BatchSize
	for i := 0; i < len(tokens); i += size {
		end := i + size
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[i:end]
		wantLogits := end == len(tokens)
		if err := c.eng.DecodeBatch(batch, i, wantLogits); err != nil {
			return fmt.Errorf("prefill batch %d: %w: %v", i/size, ErrEngineDecode, err)
		}
	}
	return nil
}

// decodeLoop samples tokens until end-of-sequence, the bullet target, or
// the hard cap. Bullet tracking is structural: a bullet opens on the
// marker and closes on the next newline.
func (c *Controller) decodeLoop(ctx context.Context, promptLen int) (string, error) {
	var out strings.Builder
	pos := promptLen
	bullets := 0
	inBullet := false

	for generated := 0; generated < c.opts.MaxTokens; generated++ {
		if err := ctx.Err(); err != nil {
			return out.String(), err
		}

		tok, err := c.eng.SampleNext()
		if err != nil {
			return "", fmt.Errorf("sample: %w: %v", ErrEngineDecode, err)
		}
		if c.eng.IsEOS(tok) {
			break
		}

		text := c.eng.TokenText(tok)
		out.WriteString(text)

		// Scan in order: a newline only closes a bullet opened before it,
		// even when both land in one token.
		for _, r := range text {
			if r == bulletRune {
				inBullet = true
			} else if r == '\n' && inBullet {
				bullets++
				inBullet = false
			}
		}
		if bullets >= c.opts.TargetBullets {
			break
		}

		step := []engine.Token{tok}
		if err := c.eng.DecodeBatch(step, pos, true); err != nil {
			return "", fmt.Errorf("decode step: %w: %v", ErrEngineDecode, err)
		}
		pos++
	}

	return out.String(), nil
}
