package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var dataDirFlag string

var rootCmd = &cobra.Command{
	Use:   "steward",
	Short: "Personal assistant agent over a local SQLite store",
	Long: `steward runs a bounded decision loop against an OpenAI-compatible
completion service: it sends the conversation, extracts a JSON decision,
executes the functions the decision names against the local store, and folds
the results back in until an answer comes out or the step budget runs out.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the steward version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("steward version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default: ./.steward if present, else ~/.config/steward)")
	rootCmd.AddCommand(serveCmd, askCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
