// Package assistant wires the stores, planner, and generation controller
// into the single entry point the presentation layer calls.
package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/offgridai/aidmate/internal/config"
	"github.com/offgridai/aidmate/internal/engine"
	"github.com/offgridai/aidmate/internal/generate"
	"github.com/offgridai/aidmate/internal/knowledge"
	"github.com/offgridai/aidmate/internal/memory"
	"github.com/offgridai/aidmate/internal/planner"
)

// Assistant is the explicit context object constructed once at process
// start. No ambient global state; callers hold the handle.
type Assistant struct {
	cfg       *config.Config
	knowledge *knowledge.Store // nil when the knowledge DB is unavailable
	memory    *memory.Store
	planner   *planner.Planner
	ctrl      *generate.Controller
	log       *zap.Logger
}

// historySeed bounds how many stored messages prime recent history.
const historySeed = 10

// New opens the stores and builds the pipeline. The memory store is
// required; a missing knowledge store degrades retrieval rather than
// failing construction.
func New(cfg *config.Config, eng engine.Engine, log *zap.Logger) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}

	mem, err := memory.Open(cfg.MemoryDB, cfg.TTL())
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	know, err := knowledge.Open(cfg.KnowledgeDB)
	if err != nil {
		log.Warn("knowledge store unavailable, retrieval degraded", zap.Error(err))
		know = nil
	}

	a := &Assistant{
		cfg:       cfg,
		knowledge: know,
		memory:    mem,
		planner:   planner.New(know, mem, cfg.ContextBudget, log),
		log:       log,
	}

	a.ctrl = generate.NewController(eng, log, generate.Options{
		Reserve:       cfg.GenerationReserve,
		BatchSize:     cfg.BatchSize,
		MaxTokens:     cfg.MaxTokens,
		TargetBullets: cfg.TargetBullets,
		MinBullets:    cfg.MinBullets,
	})
	a.seedHistory(context.Background())

	return a, nil
}

// seedHistory primes the controller with the session's stored turns,
// paired user-then-assistant. The admission policy applies here too:
// responses below the bullet threshold stay out of context even though
// they are persisted.
func (a *Assistant) seedHistory(ctx context.Context) {
	msgs, err := a.memory.RecentConversations(ctx, "", historySeed)
	if err != nil {
		a.log.Warn("history seed failed", zap.Error(err))
		return
	}
	var turns []generate.Turn
	for i := 0; i+1 < len(msgs); i++ {
		if msgs[i].IsUser && !msgs[i+1].IsUser {
			if generate.CountBullets(msgs[i+1].Message) >= a.cfg.MinBullets {
				turns = append(turns, generate.Turn{Query: msgs[i].Message, Response: msgs[i+1].Message})
			}
			i++
		}
	}
	a.ctrl.SeedHistory(turns)
}

// Answer runs one query through plan, generate, and persist. Generation
// failures are returned as typed errors without touching stored history.
func (a *Assistant) Answer(ctx context.Context, query string) (string, error) {
	plan := a.planner.BuildPlan(ctx, query)
	a.log.Debug("plan built",
		zap.String("category", plan.Category),
		zap.Int("chunks", len(plan.Chunks)),
		zap.Int("facts", len(plan.Facts)))

	response, err := a.ctrl.Generate(ctx, plan.SystemPrompt, query)
	if err != nil {
		a.log.Warn("generation failed", zap.Error(err))
		return "", err
	}

	a.persistTurn(ctx, query, response, plan.Category)
	return response, nil
}

// persistTurn stores both sides of the turn and extracts facts from the
// user message. Persistence is best-effort: a store failure degrades
// memory, never the answer already produced.
func (a *Assistant) persistTurn(ctx context.Context, query, response, category string) {
	msgID, err := a.memory.StoreConversation(ctx, memory.StoreParams{
		Message:  query,
		IsUser:   true,
		Category: category,
	})
	if err != nil {
		a.log.Warn("persist user turn failed", zap.Error(err))
		return
	}
	if _, err := a.memory.ExtractAndStore(ctx, query, "", msgID); err != nil {
		a.log.Warn("fact extraction failed", zap.Error(err))
	}
	if _, err := a.memory.StoreConversation(ctx, memory.StoreParams{
		Message:  response,
		Category: category,
	}); err != nil {
		a.log.Warn("persist assistant turn failed", zap.Error(err))
	}
}

// Plan exposes the planner's retrieval for debug tooling.
func (a *Assistant) Plan(ctx context.Context, query string) planner.Plan {
	return a.planner.BuildPlan(ctx, query)
}

// MemoryStats returns aggregate store counts.
func (a *Assistant) MemoryStats(ctx context.Context) (memory.Stats, error) {
	return a.memory.MemoryStats(ctx)
}

// ClearSession clears the active session and starts a new one.
func (a *Assistant) ClearSession(ctx context.Context) error {
	a.ctrl.SeedHistory(nil)
	return a.memory.ClearCurrentSession(ctx)
}

// ClearAllMemories wipes everything and starts a fresh session.
func (a *Assistant) ClearAllMemories(ctx context.Context) error {
	a.ctrl.SeedHistory(nil)
	return a.memory.ClearAll(ctx)
}

// KnowledgeAvailable reports whether knowledge retrieval is active.
func (a *Assistant) KnowledgeAvailable() bool {
	return a.knowledge.Available()
}

// Close releases both stores.
func (a *Assistant) Close() error {
	if a.knowledge != nil {
		a.knowledge.Close()
	}
	return a.memory.Close()
}
