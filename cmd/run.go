package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alantheprice/span/internal/agent"
	"github.com/alantheprice/span/internal/config"
	"github.com/alantheprice/span/internal/depindex"
	"github.com/alantheprice/span/internal/eventlog"
	"github.com/alantheprice/span/internal/llmbridge"
	"github.com/alantheprice/span/internal/logging"
	"github.com/alantheprice/span/internal/verifier"
)

// errInterrupted is returned by runTask when the user's interrupt signal
// cut a run short. The only cancellation channel is this signal, caught
// during any suspension (an LLM call, a shell/test invocation, or an
// approval prompt); on it span prints a notice and aborts without running
// finalization, mirroring original_source/span/cli.py's
// `except KeyboardInterrupt` handling around run_task.
var errInterrupted = errors.New("interrupted by user")

var (
	runShowPlan bool
	runOpus     bool
	runFull     bool
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Run a task end to end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTask(args[0])
	},
}

func init() {
	runCmd.Flags().BoolVar(&runShowPlan, "plan", false, "Show plan for approval before executing")
	runCmd.Flags().BoolVar(&runOpus, "opus", false, "Use claude-3-opus instead of sonnet")
	runCmd.Flags().BoolVar(&runFull, "full", false, "Force the pytest stage on (tests are still selected from the dependency index, not the full suite)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Set SPAN_VERBOSE=1 (JSON-line log file; no extra output)")
}

func runTask(task string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if cfg.APIKey() == "" {
		fmt.Fprintf(os.Stderr, "Error: %s not found in environment\n", cfg.APIKeyEnv)
		fmt.Fprintf(os.Stderr, "Set it with: export %s=your-key\n", cfg.APIKeyEnv)
		return fmt.Errorf("missing API key")
	}

	if runOpus {
		cfg.Model = "claude-3-opus-20240229"
	}
	if runFull {
		cfg.Verification.Pytest = true
	}
	if runVerbose {
		os.Setenv("SPAN_VERBOSE", "1")
	}
	log := logging.Get()
	defer log.Close()

	idx, err := depindex.Open(depindex.DefaultPath)
	if err != nil {
		return fmt.Errorf("error opening dependency index: %w", err)
	}
	defer idx.Close()
	if err := depindex.BuildAll(idx, ".", cfg.Ignore); err != nil {
		log.Error(fmt.Errorf("dependency index build: %w", err))
	}

	events, err := eventlog.New("")
	if err != nil {
		return fmt.Errorf("error opening event log: %w", err)
	}

	bridge := llmbridge.New(cfg.Model, cfg.APIKey())
	v := verifier.New(verifier.ShellGateRunner{}, idx, verifier.Config{
		Syntax:        cfg.Verification.Syntax,
		Ruff:          cfg.Verification.Ruff,
		Mypy:          cfg.Verification.Mypy,
		MypyFull:      cfg.Verification.MypyFull,
		Pytest:        cfg.Verification.Pytest,
		PytestArgs:    cfg.Verification.PytestArgs,
		TestPatterns:  cfg.TestPatterns,
		FallbackTests: cfg.FallbackTests,
	})

	engine := agent.NewDefault(cfg, bridge, v, events)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := engine.Run(ctx, task, runShowPlan)
	if err != nil {
		if interrupted(ctx) {
			return reportInterrupted()
		}
		return fmt.Errorf("error: %w", err)
	}
	if interrupted(ctx) {
		return reportInterrupted()
	}

	if len(state.Changes) == 0 {
		fmt.Println("\nNo successful changes.")
		return nil
	}

	kept, err := engine.Finalize(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to revert changes: %w", err)
	}

	if !kept {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("\nRevise instruction (or press Enter to exit): ")
		line, _ := reader.ReadString('\n')
		revision := strings.TrimSpace(line)
		if revision != "" {
			newState, err := engine.HandleRevision(ctx, state, revision, runShowPlan)
			if err != nil {
				if interrupted(ctx) {
					return reportInterrupted()
				}
				return fmt.Errorf("error: %w", err)
			}
			if interrupted(ctx) {
				return reportInterrupted()
			}
			if len(newState.Changes) > 0 {
				if _, err := engine.Finalize(ctx, newState); err != nil {
					return fmt.Errorf("failed to revert changes: %w", err)
				}
			} else {
				fmt.Println("\nNo successful changes.")
			}
		}
	}

	return nil
}

// interrupted reports whether ctx was cancelled by the signal.NotifyContext
// interrupt handler rather than by timing out or completing normally.
func interrupted(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func reportInterrupted() error {
	fmt.Fprintln(os.Stderr, "\n\nInterrupted by user")
	return errInterrupted
}
