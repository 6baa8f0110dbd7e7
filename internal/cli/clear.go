package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the current session",
		Long:  "Cascade-delete the current session's facts and messages and start a fresh session. With --all, wipe every session.",
		Run:   runClear,
	}

	cmd.Flags().Bool("all", false, "Clear all sessions, messages, and facts")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	cfg := loadConfig()
	ms := openMemory(cfg)
	defer ms.Close()

	var err error
	if all {
		err = ms.ClearAll(cmd.Context())
	} else {
		err = ms.ClearCurrentSession(cmd.Context())
	}
	if err != nil {
		exitErr("clear", err)
	}

	fmt.Printf(`{"ok":true,"session":%q}`+"\n", ms.SessionID())
}
