package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/offgridai/aidmate/internal/engine"
)

// bulletTokens emits n complete bullets, three tokens each.
func bulletTokens(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, Bullet+" ", "STAY CALM - assess the situation", "\n")
	}
	return out
}

func TestGenerateFiveBullets(t *testing.T) {
	output := append(bulletTokens(5), "EXTRA", "EXTRA", "EXTRA")
	eng := engine.NewScript(4096, output...)
	c := NewController(eng, nil, Options{})

	got, err := c.Generate(context.Background(), "system prompt here", "help me")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n := CountBullets(got); n != 5 {
		t.Errorf("expected 5 bullets, got %d:\n%s", n, got)
	}
	if strings.Contains(got, "EXTRA") {
		t.Error("generation did not stop at the bullet target")
	}
	if len(c.History()) != 1 {
		t.Errorf("expected 1 admitted turn, got %d", len(c.History()))
	}
}

func TestGenerateStopsBeforeHardCap(t *testing.T) {
	// Far more scripted output than the bullet target needs; a much
	// larger cap must not be reached.
	output := append(bulletTokens(5), bulletTokens(20)...)
	eng := engine.NewScript(4096, output...)
	c := NewController(eng, nil, Options{MaxTokens: 5000})

	got, err := c.Generate(context.Background(), "sys", "query")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n := CountBullets(got); n != 5 {
		t.Errorf("expected exactly 5 bullets, got %d", n)
	}
}

func TestGenerateHardCap(t *testing.T) {
	// No newlines ever, so bullets never complete; the cap must end it.
	var output []string
	for i := 0; i < 100; i++ {
		output = append(output, "word ")
	}
	eng := engine.NewScript(4096, output...)
	c := NewController(eng, nil, Options{MaxTokens: 10})

	got, err := c.Generate(context.Background(), "sys", "query")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if n := strings.Count(got, "word"); n != 10 {
		t.Errorf("expected 10 generated tokens, got %d", n)
	}
}

func TestBulletNotClosedByLeadingNewlineInToken(t *testing.T) {
	// The first token carries a newline before its marker; that newline
	// must not complete the bullet the same token opens.
	eng := engine.NewScript(4096, "\n"+Bullet+" A - x", " more", "\n", "after")
	c := NewController(eng, nil, Options{TargetBullets: 1, MaxTokens: 50})

	got, err := c.Generate(context.Background(), "sys", "query")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(got, "more") {
		t.Errorf("bullet closed too early, output: %q", got)
	}
	if strings.Contains(got, "after") {
		t.Errorf("generation did not stop once the bullet completed: %q", got)
	}
}

func TestMalformedResponseNotAdmitted(t *testing.T) {
	eng := engine.NewScript(4096, bulletTokens(2)...)
	c := NewController(eng, nil, Options{})

	got, err := c.Generate(context.Background(), "sys", "query")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got == "" {
		t.Fatal("malformed response must still be returned to the caller")
	}
	if n := CountBullets(got); n != 2 {
		t.Errorf("expected 2 bullets in output, got %d", n)
	}
	if len(c.History()) != 0 {
		t.Errorf("malformed response must not enter history, got %d turns", len(c.History()))
	}
}

func TestQueryTooLong(t *testing.T) {
	eng := engine.NewScript(50)
	c := NewController(eng, nil, Options{Reserve: 5, MessageSlack: 2})

	long := strings.Repeat("word ", 60)
	_, err := c.Generate(context.Background(), "sys", long)
	if !errors.Is(err, ErrQueryTooLong) {
		t.Errorf("expected ErrQueryTooLong, got %v", err)
	}
}

func TestContextFullAfterTrimRetry(t *testing.T) {
	eng := engine.NewScript(50)
	c := NewController(eng, nil, Options{Reserve: 5, MessageSlack: 2})

	// Simulate a long conversation; each turn alone would blow the budget.
	var turns []Turn
	for i := 0; i < 50; i++ {
		turns = append(turns, Turn{Query: strings.Repeat("q ", 30), Response: strings.Repeat("r ", 30)})
	}
	c.SeedHistory(turns)

	// Query pushes the bare prompt past 90% of the window, so trimming
	// cannot help; the bounded retry must end in ErrContextFull.
	query := strings.Repeat("word ", 44)
	_, err := c.Generate(context.Background(), "sys", query)
	if !errors.Is(err, ErrContextFull) {
		t.Errorf("expected ErrContextFull, got %v", err)
	}
}

func TestContextFullWithThinHistory(t *testing.T) {
	eng := engine.NewScript(50)
	c := NewController(eng, nil, Options{Reserve: 5, MessageSlack: 2})
	c.SeedHistory([]Turn{{Query: "q", Response: "r"}})

	query := strings.Repeat("word ", 44)
	_, err := c.Generate(context.Background(), "sys", query)
	if !errors.Is(err, ErrContextFull) {
		t.Errorf("expected ErrContextFull with fewer than two turns, got %v", err)
	}
}

func TestHistoryBudgetNeverExceeded(t *testing.T) {
	eng := engine.NewScript(100)
	c := NewController(eng, nil, Options{Reserve: 20, MessageSlack: 5})

	var turns []Turn
	for i := 0; i < 30; i++ {
		turns = append(turns, Turn{Query: "how do I treat a burn", Response: "cool it under running water now"})
	}
	c.SeedHistory(turns)

	prompt, err := c.assemble("short system prompt", "next question please")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	tokens, err := eng.Tokenize(prompt)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) > 100-20 {
		t.Errorf("assembled prompt uses %d tokens, exceeds window minus reserve %d", len(tokens), 80)
	}
}

func TestHistoryChronologicalOrder(t *testing.T) {
	eng := engine.NewScript(4096)
	c := NewController(eng, nil, Options{})
	c.SeedHistory([]Turn{
		{Query: "first question", Response: "first answer"},
		{Query: "second question", Response: "second answer"},
	})

	prompt, err := c.assemble("sys", "third question")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	i1 := strings.Index(prompt, "first question")
	i2 := strings.Index(prompt, "second question")
	i3 := strings.Index(prompt, "third question")
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("prompt missing turns:\n%s", prompt)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Error("turns not in chronological order")
	}
}

func TestPrefillFailureTagged(t *testing.T) {
	eng := engine.NewScript(4096, bulletTokens(5)...)
	eng.FailAtBatch = 0
	c := NewController(eng, nil, Options{BatchSize: 4})

	_, err := c.Generate(context.Background(), "a long system prompt with several words", "and a query")
	if !errors.Is(err, ErrEngineDecode) {
		t.Fatalf("expected ErrEngineDecode, got %v", err)
	}
	if !strings.Contains(err.Error(), "prefill batch 0") {
		t.Errorf("error not tagged with batch index: %v", err)
	}
}

func TestPrefillBatching(t *testing.T) {
	eng := engine.NewScript(4096)
	c := NewController(eng, nil, Options{BatchSize: 3})

	// 10 prompt tokens at batch size 3 = 4 prefill calls.
	prompt := "one two three four five six seven"
	tokens, _ := eng.Tokenize(prompt + " User: q Assistant:")
	if err := c.prefill(tokens); err != nil {
		t.Fatalf("prefill: %v", err)
	}
	want := (len(tokens) + 2) / 3
	if got := eng.BatchCalls(); got != want {
		t.Errorf("expected %d prefill batches, got %d", want, got)
	}
}
