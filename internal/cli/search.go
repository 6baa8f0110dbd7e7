package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/offgridai/aidmate/internal/knowledge"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Long:  "Rank knowledge chunks by keyword overlap, or by full-text relevance with --fts.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("category", "C", "", "Filter by category")
	cmd.Flags().IntP("limit", "l", 5, "Max results")
	cmd.Flags().Bool("fts", false, "Use the full-text index instead of keyword ranking")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	fts, _ := cmd.Flags().GetBool("fts")
	query := strings.Join(args, " ")

	cfg := loadConfig()
	ks := openKnowledge(cfg)
	defer ks.Close()

	var chunks []knowledge.Chunk
	var err error
	if fts {
		chunks, err = ks.FullTextSearch(cmd.Context(), query, limit)
	} else {
		chunks, err = ks.Search(cmd.Context(), knowledge.SearchParams{
			Query:    query,
			Category: category,
			Limit:    limit,
		})
	}
	if err != nil {
		exitErr("search", err)
	}

	if len(chunks) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(chunks, "", "  ")
	fmt.Println(string(b))
}
