/*
Package main provides the entry point for the span CLI application.

span is a verification-first, local command-line coding agent: it drives a
plan-then-execute loop against a language model, applies proposed edits as
unified diffs, verifies each one through a staged pipeline, and reverts on
failure.
*/
package main

import (
	"fmt"
	"os"

	"github.com/alantheprice/span/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
