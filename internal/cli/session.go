package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the current session",
		Long:  "Print the resolved active session row. Opening the store runs the expiry sweep first.",
		Run:   runSession,
	}

	RootCmd.AddCommand(cmd)
}

func runSession(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ms := openMemory(cfg)
	defer ms.Close()

	sess, err := ms.CurrentSession(cmd.Context())
	if err != nil {
		exitErr("session", err)
	}

	b, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(b))
}
