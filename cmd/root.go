// Package cmd implements the yield command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ctwhite/yield/repl"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "yield",
	Short: "Compile and run resumable generator programs",
	Long: `yield compiles generator definitions into flat step programs and runs
them with suspend and resume.  Without a subcommand it starts an interactive
shell.`,
	Run: func(cmd *cobra.Command, args []string) {
		repl.RunRepl("> ")
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
