// Package cli implements the aidmate diagnostic CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/offgridai/aidmate/internal/config"
	"github.com/offgridai/aidmate/internal/knowledge"
	"github.com/offgridai/aidmate/internal/memory"
)

var (
	configPath  string
	knowledgeDB string
	memoryDB    string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "aidmate",
	Short: "Offline emergency assistant core",
	Long:  "Diagnostic tooling for the aidmate context-assembly engine: inspect knowledge retrieval, session memory, and prompt planning.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $AIDMATE_CONFIG)")
	RootCmd.PersistentFlags().StringVar(&knowledgeDB, "knowledge-db", "", "Knowledge database path override")
	RootCmd.PersistentFlags().StringVar(&memoryDB, "memory-db", "", "Memory database path override")
}

func loadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("AIDMATE_CONFIG")
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			exitErr("load config", err)
		}
		cfg = loaded
	}
	if knowledgeDB != "" {
		cfg.KnowledgeDB = knowledgeDB
	}
	if memoryDB != "" {
		cfg.MemoryDB = memoryDB
	}
	return cfg
}

func openMemory(cfg *config.Config) *memory.Store {
	s, err := memory.Open(cfg.MemoryDB, cfg.TTL())
	if err != nil {
		exitErr("open memory store", err)
	}
	return s
}

// openKnowledge returns nil when the knowledge store is unavailable;
// commands report the degraded state rather than failing.
func openKnowledge(cfg *config.Config) *knowledge.Store {
	s, err := knowledge.Open(cfg.KnowledgeDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		return nil
	}
	return s
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
