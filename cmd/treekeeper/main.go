package main

import (
	"fmt"
	"os"

	"treekeeper/internal/cli"
	"treekeeper/internal/exitcodes"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.FromError(err))
	}
}
