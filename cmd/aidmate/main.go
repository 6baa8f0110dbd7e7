package main

import (
	"os"

	"github.com/offgridai/aidmate/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
