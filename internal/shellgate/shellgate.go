// Package shellgate runs a fixed allowlist of shell commands on behalf of
// the agent — the test runner, linter, type checker, a bounded python
// invocation, and read-only git inspection — and rejects everything else.
// It is grounded on original_source/span/tools/shell.py, restructured the
// way pkg/agent_tools/shell.go in the teacher runs and captures subprocess
// output.
package shellgate

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
)

// Timeout bounds every command run through the gate, matching the 300s
// wall-clock limit in the Python original.
const Timeout = 300 * time.Second

// programRule describes what's allowed after the program name.
type programRule struct {
	allowedFlags      map[string]bool
	allowedPositional bool
}

// allowedPrograms is the fixed allowlist. Anything not named here is
// rejected outright.
var allowedPrograms = map[string]programRule{
	"pytest": {
		allowedFlags:      set("-v", "-x", "-q", "--version", "--tb=short", "--tb=long", "--lf", "--ff"),
		allowedPositional: true,
	},
	"ruff": {
		allowedFlags:      set("check", "format", "--fix"),
		allowedPositional: true,
	},
	"mypy": {
		allowedFlags:      set("--strict", "--no-error-summary"),
		allowedPositional: true,
	},
	"python": {
		allowedFlags:      set("-m", "-c"),
		allowedPositional: true,
	},
	"python3": {
		allowedFlags:      set("-m", "-c"),
		allowedPositional: true,
	},
	"git": {
		allowedFlags:      set("status", "diff", "log", "show"),
		allowedPositional: true,
	},
}

// subcommandLike are bare words (no leading "-") that are still treated as
// flags requiring an allowlist entry, mirroring the Python original's
// special-cased git/ruff subcommands.
var subcommandLike = set("check", "format", "status", "diff", "log", "show")

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}

// DisallowedError reports that a command was rejected before being run.
type DisallowedError struct {
	Reason string
}

func (e *DisallowedError) Error() string { return e.Reason }

// Result is the outcome of a completed (or timed-out) command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Run parses command with shell-word splitting, validates it against the
// allowlist, and — if accepted — executes it with a bounded timeout.
// Rejected commands return a *DisallowedError and never spawn a process.
func Run(ctx context.Context, command string) (Result, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return Result{}, &DisallowedError{Reason: fmt.Sprintf("failed to parse command: %s", err)}
	}
	if len(args) == 0 {
		return Result{}, &DisallowedError{Reason: "empty command"}
	}

	program := args[0]
	rule, ok := allowedPrograms[program]
	if !ok {
		return Result{}, &DisallowedError{Reason: fmt.Sprintf("program not allowed: %s", program)}
	}

	if err := validateArgs(program, rule, args[1:]); err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Result{TimedOut: true}, fmt.Errorf("command timed out after %s", Timeout)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if exitErr, ok := err.(*exec.ExitError); ok {
		*target = exitErr
		return true
	}
	return false
}

func validateArgs(program string, rule programRule, args []string) error {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") || subcommandLike[arg] {
			if !rule.allowedFlags[arg] {
				return &DisallowedError{Reason: fmt.Sprintf("flag not allowed for %s: %s", program, arg)}
			}
			continue
		}

		if !rule.allowedPositional {
			return &DisallowedError{Reason: fmt.Sprintf("positional arguments not allowed for %s", program)}
		}
		if strings.Contains(arg, "..") || strings.HasPrefix(arg, "/") {
			return &DisallowedError{Reason: fmt.Sprintf("suspicious path in argument: %s", arg)}
		}
	}
	return nil
}
