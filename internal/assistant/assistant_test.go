package assistant

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/offgridai/aidmate/internal/config"
	"github.com/offgridai/aidmate/internal/engine"
	"github.com/offgridai/aidmate/internal/generate"
)

func bulletScript(n int) []string {
	var out []string
	for i := 0; i < n; i++ {
		out = append(out, generate.Bullet+" ", "FIND SHELTER - get out of the wind", "\n")
	}
	return out
}

func newTestAssistant(t *testing.T, eng engine.Engine) *Assistant {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MemoryDB = filepath.Join(dir, "memory.db")
	cfg.KnowledgeDB = filepath.Join(dir, "knowledge.db") // absent: degraded mode

	a, err := New(cfg, eng, nil)
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAnswerPersistsTurn(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, engine.NewScript(4096, bulletScript(5)...))

	got, err := a.Answer(ctx, "I'm freezing and lost in the forest")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if generate.CountBullets(got) != 5 {
		t.Errorf("expected 5 bullets, got:\n%s", got)
	}

	st, err := a.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Conversations != 2 {
		t.Errorf("expected 2 stored messages, got %d", st.Conversations)
	}
	if st.Facts == 0 {
		t.Error("expected extracted facts from the query")
	}
}

func TestAnswerDegradedWithoutKnowledge(t *testing.T) {
	a := newTestAssistant(t, engine.NewScript(4096, bulletScript(5)...))
	if a.KnowledgeAvailable() {
		t.Fatal("test fixture should have no knowledge db")
	}

	plan := a.Plan(context.Background(), "my friend is bleeding")
	if plan.Category != "medical" {
		t.Errorf("category = %q, want medical", plan.Category)
	}
	if len(plan.Chunks) != 0 {
		t.Error("expected no chunks in degraded mode")
	}
	if !strings.Contains(plan.SystemPrompt, "exactly 5 bullet points") {
		t.Error("fallback prompt missing base directive")
	}
}

func TestClearAllMemories(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, engine.NewScript(4096, bulletScript(5)...))

	if _, err := a.Answer(ctx, "no water and it's getting dark"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := a.ClearAllMemories(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	st, err := a.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Conversations != 0 || st.Facts != 0 || st.Sessions != 1 {
		t.Errorf("expected (0,0,1), got (%d,%d,%d)", st.Conversations, st.Facts, st.Sessions)
	}
}

func TestMalformedTurnNotReseededAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MemoryDB = filepath.Join(dir, "memory.db")
	cfg.KnowledgeDB = filepath.Join(dir, "knowledge.db")

	a1, err := New(cfg, engine.NewScript(4096, bulletScript(2)...), nil)
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	if _, err := a1.Answer(ctx, "help me"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := len(a1.ctrl.History()); got != 0 {
		t.Fatalf("malformed turn admitted in-session: %d turns", got)
	}
	a1.Close()

	a2, err := New(cfg, engine.NewScript(4096), nil)
	if err != nil {
		t.Fatalf("reopen assistant: %v", err)
	}
	defer a2.Close()
	if got := len(a2.ctrl.History()); got != 0 {
		t.Errorf("malformed turn re-entered context after restart: %d turns seeded", got)
	}
}

func TestValidTurnReseededAfterRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MemoryDB = filepath.Join(dir, "memory.db")
	cfg.KnowledgeDB = filepath.Join(dir, "knowledge.db")

	a1, err := New(cfg, engine.NewScript(4096, bulletScript(5)...), nil)
	if err != nil {
		t.Fatalf("new assistant: %v", err)
	}
	if _, err := a1.Answer(ctx, "help me"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	a1.Close()

	a2, err := New(cfg, engine.NewScript(4096), nil)
	if err != nil {
		t.Fatalf("reopen assistant: %v", err)
	}
	defer a2.Close()
	if got := len(a2.ctrl.History()); got != 1 {
		t.Errorf("expected the valid turn seeded after restart, got %d turns", got)
	}
}

func TestGenerationFailureLeavesHistoryClean(t *testing.T) {
	ctx := context.Background()
	eng := engine.NewScript(4096, bulletScript(5)...)
	eng.FailAtBatch = 0
	a := newTestAssistant(t, eng)

	if _, err := a.Answer(ctx, "help"); err == nil {
		t.Fatal("expected engine failure")
	}

	st, _ := a.MemoryStats(ctx)
	if st.Conversations != 0 {
		t.Errorf("failed generation must not persist turns, got %d messages", st.Conversations)
	}
}
