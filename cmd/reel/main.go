package main

import (
	"fmt"
	"os"

	"github.com/mmcdole/reel/internal/cli"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	cmd := cli.NewRootCommand(Version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
