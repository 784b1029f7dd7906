package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDebug   bool
	flagPretty  bool
	flagLogJSON bool
)

var rootCmd = &cobra.Command{
	Use:          "librarian",
	Short:        "Librarian — spaced repetition and semantic search for your notes vault",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Librarian quizzes you on the Cards and Encounters in your markdown vault
using SM-2 spaced repetition, keeps a semantic index of your notes, and runs
scheduled maintenance jobs through the agent server.

Configuration lives in ~/.librarian/librarian.yaml; API keys in ~/.librarian/.env.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "Colourised human-readable logs")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Emit logs as JSON")
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
