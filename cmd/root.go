// Package cmd wires span's cobra command tree: run, status, logs, and
// diff, the four external commands spec.md's CLI surface names.
//
// Grounded on alantheprice-ledit's cmd/root.go composition pattern, and on
// original_source/span/cli.py for the exact command/flag/output semantics.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "span",
	Short: "Verification-first, local CLI coding agent",
	Long: `Span drives a plan-then-execute loop against a language model, applies its
proposed edits as unified diffs, verifies each one through a staged pipeline
(syntax, lint, targeted tests, type check), and reverts on failure. At the
end of a session you review the aggregate diff and decide to keep or
discard it.

Available commands:
  run     - Run a task end to end
  status  - Summarize the most recent session
  logs    - Stream recorded events
  diff    - Reconstruct per-file diffs from a session`,
}

// Execute runs the root command. Called once from main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(diffCmd)
}
