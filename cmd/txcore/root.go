package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "txcore",
	Short: "txcore CLI can inspect recorded transaction databases.",
	Long: `txcore CLI can inspect the databases produced by the txcore ` +
		`trace recorder (stats) and run a synthetic workload through a ` +
		`fully wired agent (demo).`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
