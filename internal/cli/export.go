package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions, conversations, and facts as JSON",
		Run:   runExport,
	}

	cmd.Flags().StringP("session", "s", "", "Filter by session id")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	cfg := loadConfig()
	ms := openMemory(cfg)
	defer ms.Close()

	out, err := ms.ExportAll(cmd.Context(), sessionID)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
