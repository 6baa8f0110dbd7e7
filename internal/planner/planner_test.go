package planner

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/offgridai/aidmate/internal/knowledge"
	"github.com/offgridai/aidmate/internal/memory"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"my friend is bleeding badly", "medical"},
		{"I'm freezing and lost in the forest", "weather"}, // freezing wins: weather precedes wilderness
		{"we are lost on the trail", "wilderness"},
		{"the canoe capsized in the river", "water"},
		{"there is smoke in the kitchen", "fire"},
		{"what should I pack for a trip", "general"},
	}
	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestFallbackPromptWithoutStores(t *testing.T) {
	p := New(nil, nil, 0, nil)
	got := p.SystemPrompt(context.Background(), "I'm bleeding")

	if !strings.Contains(got, "exactly 5 bullet points") {
		t.Error("fallback prompt missing base directive")
	}
	if strings.Contains(got, "Relevant guidance") || strings.Contains(got, "Known about") {
		t.Error("fallback prompt should not have retrieval sections")
	}
}

func TestPromptIncludesMemoryFacts(t *testing.T) {
	ctx := context.Background()
	ms, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), 0)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer ms.Close()
	if _, err := ms.ExtractAndStore(ctx, "I'm freezing in the forest", "", 0); err != nil {
		t.Fatalf("extract: %v", err)
	}

	p := New(nil, ms, 0, nil)
	got := p.SystemPrompt(ctx, "what do I do now")

	if !strings.Contains(got, "Known about the situation:") {
		t.Fatalf("prompt missing memory section:\n%s", got)
	}
	if !strings.Contains(got, "environment: extreme cold") {
		t.Errorf("prompt missing extracted fact:\n%s", got)
	}
	if !strings.Contains(got, "consistent with what is already known") {
		t.Error("prompt missing continuity instruction")
	}
}

func TestKnowledgeExcerptClipsOnRuneBoundary(t *testing.T) {
	p := New(nil, nil, 101, nil)
	plan := Plan{Chunks: []knowledge.Chunk{{
		ID:       "k1",
		Context:  strings.Repeat("é", 200), // 2 bytes per rune; 101 lands mid-rune
		Priority: "high",
	}}}

	got := p.render(plan)
	if !utf8.ValidString(got) {
		t.Errorf("clipped prompt contains invalid UTF-8: %q", got)
	}
	if !strings.Contains(got, "...") {
		t.Error("expected clipped excerpt to end with an ellipsis")
	}
}

func TestPromptBudgetBound(t *testing.T) {
	ctx := context.Background()
	ms, err := memory.Open(filepath.Join(t.TempDir(), "memory.db"), 0)
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	defer ms.Close()
	ms.ExtractAndStore(ctx, "I'm freezing and lost in the forest with no water at night", "", 0)

	budget := 120
	p := New(nil, ms, budget, nil)
	got := p.SystemPrompt(ctx, "help")

	overhead := len(baseDirective) + len(closingDirective) + len("Known about the situation:") +
		len("Keep answers consistent with what is already known.") + 20
	if len(got) > budget+overhead {
		t.Errorf("prompt length %d exceeds budget %d plus fixed overhead %d", len(got), budget, overhead)
	}
}
