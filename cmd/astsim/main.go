package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/astsim/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "astsim",
	Short: "Structural similarity of labeled ASTs for plagiarism review",
	Long: `astsim compares programs by the structure of their abstract syntax trees.

A cheap label-histogram cosine filter discards dissimilar pairs, the exact
tree edit distance scores the rest, and a matcher maps the aligned subtrees
back to source line ranges for reviewers.

Features:
  • Two-file comparison with line-range evidence
  • Pairwise batch analysis of a directory of submissions
  • HTTP API with progress events and a file-drop inbox`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default: nearest .astsim.toml)")

	rootCmd.AddCommand(NewCompareCmd())
	rootCmd.AddCommand(NewBatchCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
