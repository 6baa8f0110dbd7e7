package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/offgridai/aidmate/internal/planner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "plan [query]",
		Short: "Show what would be retrieved and prompted for a query",
		Long:  "Classify the query, run knowledge and memory retrieval, and print the rendered system prompt without invoking the inference engine.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPlan,
	}

	cmd.Flags().IntP("budget", "b", 0, "Context char budget (default from config)")

	RootCmd.AddCommand(cmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")
	cfg := loadConfig()

	if budget == 0 {
		budget = cfg.ContextBudget
	}

	ks := openKnowledge(cfg)
	defer ks.Close()
	ms := openMemory(cfg)
	defer ms.Close()

	logger := newLogger()
	defer logger.Sync()

	p := planner.New(ks, ms, budget, logger)
	plan := p.BuildPlan(cmd.Context(), query)

	b, _ := json.MarshalIndent(plan, "", "  ")
	fmt.Println(string(b))
}
