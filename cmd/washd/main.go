package main

import (
	"fmt"
	"os"

	"wash-sync-backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "washd:", err)
		os.Exit(1)
	}
}
