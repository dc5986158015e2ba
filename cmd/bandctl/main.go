// Package main — cmd/bandctl/main.go
//
// bandctl is the harness's operator CLI: a config validator and a
// harness demo runner, wired as cobra subcommands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "bandctl",
	Short:        "Validate and run the banded safety-gated control harness",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
