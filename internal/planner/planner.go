// Package planner renders the token-budgeted system prompt for one query,
// combining retrieved knowledge and session memory.
package planner

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/offgridai/aidmate/internal/knowledge"
	"github.com/offgridai/aidmate/internal/memory"
)

const (
	// DefaultBudget is the char budget reserved for retrieved context,
	// roughly 200 tokens at 4 chars per token. Independent of the history
	// budget owned by the generation controller.
	DefaultBudget = 800

	knowledgeLimit = 3
	widenLimit     = 4
	factLimit      = 3
)

const baseDirective = "You are an offline emergency assistant. Respond with exactly 5 bullet points. " +
	"Each bullet: ACTION IN CAPS - short explanation."

const closingDirective = "Be direct. No preamble, no disclaimers."

// Planner builds system prompts. Either store may be nil; absence degrades
// to the fallback content for that section.
type Planner struct {
	knowledge *knowledge.Store
	memory    *memory.Store
	budget    int
	log       *zap.Logger
}

// New creates a planner over the given stores.
func New(ks *knowledge.Store, ms *memory.Store, budget int, log *zap.Logger) *Planner {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{knowledge: ks, memory: ms, budget: budget, log: log}
}

// Plan captures what was retrieved for one query, for logging and debug
// tooling.
type Plan struct {
	Category     string                `json:"category"`
	Chunks       []knowledge.Chunk     `json:"chunks,omitempty"`
	Facts        []memory.SemanticFact `json:"facts,omitempty"`
	SystemPrompt string                `json:"system_prompt"`
}

// categoryRule maps trigger keywords to an emergency category. Evaluated in
// order; first match wins.
type categoryRule struct {
	keywords []string
	category string
}

var categoryTable = []categoryRule{
	{[]string{"bleeding", "blood", "breathe", "breathing", "choking", "unconscious", "chest pain", "broken", "burn", "allergic", "poison", "cpr"}, "medical"},
	{[]string{"freezing", "hypothermia", "storm", "lightning", "tornado", "hurricane", "blizzard", "heat stroke", "flood"}, "weather"},
	{[]string{"lost", "forest", "woods", "mountain", "trail", "wilderness", "shelter", "stranded", "desert"}, "wilderness"},
	{[]string{"drowning", "river", "current", "capsized", "lake", "ocean"}, "water"},
	{[]string{"fire", "smoke", "wildfire", "gas leak"}, "fire"},
}

// DefaultCategory is used when no keyword matches.
const DefaultCategory = "general"

// Classify maps a query to an emergency category using the fixed table.
func Classify(query string) string {
	q := strings.ToLower(query)
	for _, rule := range categoryTable {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.category
			}
		}
	}
	return DefaultCategory
}

// BuildPlan classifies the query, retrieves knowledge and memory, and
// renders the system prompt. It never fails: empty retrieval degrades to
// the base directive alone.
func (p *Planner) BuildPlan(ctx context.Context, query string) Plan {
	plan := Plan{Category: Classify(query)}

	if p.knowledge.Available() {
		chunks, err := p.knowledge.Search(ctx, knowledge.SearchParams{
			Query:      query,
			Category:   plan.Category,
			Limit:      knowledgeLimit,
			WidenLimit: widenLimit,
		})
		if err != nil {
			p.log.Warn("knowledge search failed", zap.Error(err))
		}
		plan.Chunks = chunks
	}

	if p.memory != nil {
		facts, err := p.memory.RelevantFacts(ctx, "", factLimit)
		if err != nil {
			p.log.Warn("memory retrieval failed", zap.Error(err))
		}
		plan.Facts = facts
	}

	plan.SystemPrompt = p.render(plan)
	return plan
}

// SystemPrompt is the single-value convenience over BuildPlan.
func (p *Planner) SystemPrompt(ctx context.Context, query string) string {
	return p.BuildPlan(ctx, query).SystemPrompt
}

// render assembles the prompt sections, greedily packing retrieved text
// into the budget. Knowledge excerpts are clipped to fit; memory lines that
// no longer fit are dropped.
func (p *Planner) render(plan Plan) string {
	var b strings.Builder
	b.WriteString(baseDirective)

	remaining := p.budget

	if len(plan.Chunks) > 0 {
		b.WriteString("\n\nRelevant guidance:")
		n := 0
		for _, c := range plan.Chunks {
			if n == knowledgeLimit || remaining <= 0 {
				break
			}
			text := c.Context
			if len(text) > remaining {
				if remaining < 40 {
					break
				}
				cut := remaining
				for cut > 0 && !utf8.RuneStart(text[cut]) {
					cut--
				}
				text = text[:cut] + "..."
			}
			n++
			fmt.Fprintf(&b, "\n%d. %s", n, text)
			remaining -= len(text)
		}
	}

	if len(plan.Facts) > 0 && remaining > 0 {
		var lines []string
		for _, f := range plan.Facts {
			if len(f.Text)+2 > remaining {
				break
			}
			lines = append(lines, "- "+f.Text)
			remaining -= len(f.Text) + 2
		}
		if len(lines) > 0 {
			b.WriteString("\n\nKnown about the situation:\n")
			b.WriteString(strings.Join(lines, "\n"))
			b.WriteString("\nKeep answers consistent with what is already known.")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(closingDirective)
	return b.String()
}
