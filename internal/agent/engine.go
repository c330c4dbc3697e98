package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/alantheprice/span/internal/config"
	"github.com/alantheprice/span/internal/diffengine"
	"github.com/alantheprice/span/internal/llmbridge"
	"github.com/alantheprice/span/internal/shellgate"
	"github.com/alantheprice/span/internal/verifier"
)

// LLM is the subset of llmbridge.Bridge the engine needs; *llmbridge.Bridge
// satisfies it directly.
type LLM interface {
	Send(ctx context.Context, system string, messages []llmbridge.Message, tools []llmbridge.ToolSpec) (*anthropic.Message, error)
}

// Verifier is the subset of verifier.Verifier the engine needs.
type Verifier interface {
	VerifyPatch(ctx context.Context, path string) verifier.Result
	VerifyFinal(ctx context.Context) verifier.Result
}

// EventSink is the subset of eventlog.EventLog the engine needs.
type EventSink interface {
	Append(eventType string, data map[string]any) error
}

// ShellRunner is the subset of shellgate the engine needs for run_shell.
type ShellRunner interface {
	Run(ctx context.Context, command string) (shellgate.Result, error)
}

type shellRunnerFunc func(ctx context.Context, command string) (shellgate.Result, error)

func (f shellRunnerFunc) Run(ctx context.Context, command string) (shellgate.Result, error) {
	return f(ctx, command)
}

// PatchApplier is the subset of diffengine the engine needs for
// apply_patch; isolated behind an interface so tests can count invocations
// (testable property S3 requires observing that a retry-exhausted patch
// never reaches the applier).
type PatchApplier interface {
	Apply(path, diff string) (diffengine.ApplyResult, error)
}

type defaultApplier struct{}

func (defaultApplier) Apply(path, diff string) (diffengine.ApplyResult, error) {
	return diffengine.Apply(path, diff)
}

// Engine drives one or more runs of the plan-then-execute loop.
type Engine struct {
	config config.Config
	limits AgentLimits
	llm    LLM
	verify Verifier
	events EventSink
	shell  ShellRunner
	patch  PatchApplier
	io     IO
}

// New constructs an Engine from its collaborators, for tests and for any
// caller that wants to substitute fakes.
func New(cfg config.Config, limits AgentLimits, llm LLM, verify Verifier, events EventSink, shell ShellRunner, patch PatchApplier, io IO) *Engine {
	return &Engine{
		config: cfg,
		limits: limits,
		llm:    llm,
		verify: verify,
		events: events,
		shell:  shell,
		patch:  patch,
		io:     io,
	}
}

// NewDefault wires an Engine with span's real collaborators: ShellGate for
// shell commands, DiffEngine for patches, and AgentLimits derived from
// config.Config's max_steps/max_retries_per_step (mirroring
// Agent.__init__'s limits construction).
func NewDefault(cfg config.Config, llm LLM, v Verifier, events EventSink) *Engine {
	limits := DefaultLimits()
	limits.MaxTurns = cfg.MaxSteps
	limits.MaxRetriesPerPatch = cfg.MaxRetriesPerStep
	return New(cfg, limits, llm, v, events, shellRunnerFunc(shellgate.Run), defaultApplier{}, NewStdIO())
}

// Run plans task, optionally gates execution on user approval of the plan,
// then drives the execute loop to completion (or a limit).
func (e *Engine) Run(ctx context.Context, task string, showPlan bool) (*SessionState, error) {
	sessionID := generateSessionID()

	e.io.Printf("Planning...\n")
	plan, err := e.getPlan(ctx, task, sessionID)
	if err != nil {
		return nil, err
	}

	preview := formatPlanPreview(plan)
	e.io.Printf("\n%s\n\n", preview)

	if showPlan {
		response, err := e.io.Prompt("Proceed? [Y/n]: ")
		if err != nil {
			return nil, err
		}
		if strings.ToLower(strings.TrimSpace(response)) == "n" {
			return newSessionState(sessionID, task), nil
		}
	}

	state := newSessionState(sessionID, task)
	state.Messages = []llmbridge.Message{
		{Role: "user", Text: fmt.Sprintf("Task: %s\n\nPlan:\n%s", task, plan)},
	}

	e.executeLoop(ctx, state)

	return state, nil
}

func generateSessionID() string {
	return uuid.New().String()[:8]
}

func (e *Engine) getPlan(ctx context.Context, task, sessionID string) (string, error) {
	message, err := e.llm.Send(ctx, planSystemPrompt, []llmbridge.Message{{Role: "user", Text: task}}, nil)
	if err != nil {
		return "", fmt.Errorf("agent: get plan: %w", err)
	}
	plan := llmbridge.ExtractText(message)

	_ = e.events.Append("plan", map[string]any{
		"session_id": sessionID,
		"task":       task,
		"plan":       plan,
	})

	return plan, nil
}

// executeLoop is the turn loop: ask the model for the next tool use, run
// every requested tool in order, feed the results back, repeat until the
// model stops asking for tools or a resource limit is hit.
func (e *Engine) executeLoop(ctx context.Context, state *SessionState) {
	tools := toolSpecs()

	for {
		if limit := e.checkLimits(state); limit != "" {
			e.io.Printf("Stopped: %s limit reached\n", limit)
			return
		}

		state.TurnCount++

		response, err := e.llm.Send(ctx, executeSystemPrompt, state.Messages, tools)
		if err != nil {
			state.LastErrors = append(state.LastErrors, err.Error())
			return
		}

		if !llmbridge.HasToolUse(response) {
			if len(state.LastErrors) > 0 && len(state.Changes) == 0 {
				e.io.Printf("\nAgent stopped after verification failures.\n")
			}
			return
		}

		state.Messages = append(state.Messages, llmbridge.Message{
			Role:  "assistant",
			Text:  llmbridge.ExtractText(response),
			Tools: llmbridge.ExtractToolCalls(response),
		})

		toolCalls := llmbridge.ExtractToolCalls(response)
		var results []llmbridge.Message
		hitLimit := false

		for _, call := range toolCalls {
			state.ToolCallCount++
			if call.Name == "apply_patch" {
				state.PatchAttemptCount++
			}

			if limit := e.checkLimits(state); limit != "" {
				e.io.Printf("Stopped: %s limit reached\n", limit)
				hitLimit = true
				break
			}

			text, isError := e.executeTool(ctx, call, state)
			results = append(results, llmbridge.Message{Role: "tool", ToolID: call.ID, Text: text, IsError: isError})

			_ = e.events.Append("tool_call", map[string]any{
				"session_id": state.SessionID,
				"tool":       call.Name,
				"args":       decodeInput(call.Input),
			})
			_ = e.events.Append("tool_result", map[string]any{
				"session_id": state.SessionID,
				"result":     text,
			})
		}

		if hitLimit {
			return
		}

		if len(results) > 0 {
			state.Messages = append(state.Messages, results...)
		}
	}
}

// checkLimits returns the name of the first exceeded limit, or "" if none.
func (e *Engine) checkLimits(state *SessionState) string {
	if state.TurnCount >= e.limits.MaxTurns {
		return "max_turns"
	}
	if state.ToolCallCount >= e.limits.MaxToolCalls {
		return "max_tool_calls"
	}
	if state.PatchAttemptCount >= e.limits.MaxPatchAttempts {
		return "max_patch_attempts"
	}
	return ""
}

func (e *Engine) executeTool(ctx context.Context, call llmbridge.ToolCall, state *SessionState) (text string, isError bool) {
	switch call.Name {
	case "read_file":
		var input struct {
			Path string `json:"path"`
		}
		_ = json.Unmarshal(call.Input, &input)
		e.io.Printf("Reading %s...\n", input.Path)
		return e.readFile(input.Path)

	case "apply_patch":
		var input struct {
			Path string `json:"path"`
			Diff string `json:"diff"`
		}
		_ = json.Unmarshal(call.Input, &input)
		return e.executePatchWithVerification(ctx, input.Path, input.Diff, state)

	case "run_shell":
		var input struct {
			Command string `json:"command"`
		}
		_ = json.Unmarshal(call.Input, &input)
		e.io.Printf("Running %s...\n", input.Command)
		return e.runShell(ctx, input.Command)

	default:
		return fmt.Sprintf("Error: Unknown tool '%s'", call.Name), true
	}
}

// readFile mirrors ReadFileTool.execute: a line-numbered dump of the file.
func (e *Engine) readFile(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Error: File not found: %s", path), true
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: Path is not a file: %s", path), true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("Error: Failed to read file: %s", err), true
	}

	lines := strings.Split(string(data), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d|%s", i+1, line)
	}
	return b.String(), false
}

// runShell mirrors RunShellTool.execute's output shaping: stdout with
// stderr appended, trimmed, exit code folded into an error message.
func (e *Engine) runShell(ctx context.Context, command string) (string, bool) {
	result, err := e.shell.Run(ctx, command)
	if err != nil {
		return fmt.Sprintf("Error: %s", err), true
	}
	if result.TimedOut {
		return "Error: command timed out after 300 seconds", true
	}

	output := result.Stdout
	if result.Stderr != "" {
		output = output + "\n" + result.Stderr
	}
	output = strings.TrimSpace(output)

	if result.ExitCode != 0 {
		return fmt.Sprintf("Error: Command exited with code %d\n%s", result.ExitCode, output), true
	}
	return output, false
}

// executePatchWithVerification is the patch-with-verify routine: apply,
// verify, and either keep the change or revert it, counting retries
// per-path and refusing to touch the applier once a path's retry budget is
// spent.
func (e *Engine) executePatchWithVerification(ctx context.Context, path, diff string, state *SessionState) (string, bool) {
	_, statErr := os.Stat(path)
	isNewFile := os.IsNotExist(statErr)

	retryCount := state.RetryCount[path]
	maxRetries := e.limits.MaxRetriesPerPatch

	if retryCount >= maxRetries {
		e.io.Printf("  x Max retries (%d) exceeded for %s\n", maxRetries, path)
		return fmt.Sprintf("ERROR: Exceeded %d retry attempts for %s. Stop trying to patch this file and either try a completely different approach or report that you cannot complete the task.", maxRetries, path), true
	}

	if retryCount == 0 {
		e.io.Printf("Applying patch to %s...\n", path)
	} else {
		e.io.Printf("  Retrying %s... (%d/%d)\n", path, retryCount+1, maxRetries)
	}

	applyResult, err := e.patch.Apply(path, diff)
	if err != nil {
		state.RetryCount[path] = retryCount + 1
		e.io.Printf("  x Patch failed (%s)\n", classifyApplyError(err))
		return fmt.Sprintf("Error: %s", err), true
	}

	result := e.verify.VerifyPatch(ctx, path)

	if result.Passed {
		e.io.Printf("  check Verified\n")
		if isNewFile {
			state.CreatedFiles[path] = true
		}
		delete(state.RetryCount, path)
		state.Changes = append(state.Changes, ChangeOp{
			Path:        path,
			ForwardDiff: diff,
			ReverseDiff: applyResult.ReverseDiff,
			Timestamp:   time.Now(),
			StepID:      state.PatchAttemptCount,
		})
		return fmt.Sprintf("SUCCESS: Patch to %s applied and verified. Task complete - stop now and let the user review the changes.", path), false
	}

	state.RetryCount[path] = retryCount + 1
	firstError := "unknown"
	if len(result.Errors) > 0 {
		firstError = result.Errors[0]
	}
	shortError := firstError
	if len(shortError) > 60 {
		shortError = shortError[:60] + "..."
	}
	e.io.Printf("  x Verification failed: %s\n", shortError)

	if applyResult.ReverseDiff != "" {
		if _, revertErr := e.patch.Apply(path, applyResult.ReverseDiff); revertErr != nil {
			_ = e.events.Append("revert_failed", map[string]any{
				"session_id": state.SessionID,
				"path":       path,
				"error":      revertErr.Error(),
			})
		}
	}

	state.LastErrors = result.Errors
	return fmt.Sprintf("Patch reverted due to verification failure:\n%s", strings.Join(result.Errors, "\n")), true
}

// classifyApplyError turns a diffengine error into the terse hint the
// Python original derives by scanning patch(1)'s output text.
func classifyApplyError(err error) string {
	switch {
	case errors.Is(err, diffengine.ErrLineCountMismatch):
		return "line count mismatch"
	case errors.Is(err, diffengine.ErrHunkMismatch):
		return "hunk doesn't match file"
	default:
		return err.Error()
	}
}

// revertAll applies every ChangeOp's reverse diff in reverse insertion
// order, collecting (rather than stopping on) individual failures so the
// pass is best-effort.
func (e *Engine) revertAll(changes []ChangeOp) error {
	var failed []FailedRevert
	for i := len(changes) - 1; i >= 0; i-- {
		op := changes[i]
		if _, err := e.patch.Apply(op.Path, op.ReverseDiff); err != nil {
			failed = append(failed, FailedRevert{
				Path:        op.Path,
				ReverseDiff: op.ReverseDiff,
				Reason:      fmt.Sprintf("failed to revert %s: %s", op.Path, err),
			})
		}
	}
	if len(failed) > 0 {
		return &RevertError{FailedOps: failed}
	}
	return nil
}

// Finalize runs the advisory full type check, shows the aggregate diff, and
// prompts to keep or revert every accepted change. It returns false with no
// error when there was nothing to finalize.
func (e *Engine) Finalize(ctx context.Context, state *SessionState) (bool, error) {
	if len(state.Changes) == 0 {
		return false, nil
	}

	finalCheck := e.verify.VerifyFinal(ctx)
	e.showDiff(state.Changes, state.CreatedFiles)

	if !finalCheck.Passed {
		e.io.Printf("\nNote: Some optional checks have warnings:\n")
		for _, msg := range firstN(finalCheck.Errors, 3) {
			lower := strings.ToLower(msg)
			if strings.Contains(lower, "type annotation") || strings.Contains(msg, "no-untyped") {
				e.io.Printf("  - Consider adding type hints\n")
				break
			}
			short := msg
			if len(short) > 70 {
				short = short[:70] + "..."
			}
			e.io.Printf("  - %s\n", short)
		}
	}

	response, err := e.io.Prompt("\nKeep changes? [y/N]: ")
	if err != nil {
		return false, err
	}

	if strings.ToLower(strings.TrimSpace(response)) == "y" {
		state.Changes = nil
		return true, nil
	}

	e.io.Printf("Reverting changes...\n")
	if err := e.revertAll(state.Changes); err != nil {
		return false, err
	}
	return false, nil
}

func (e *Engine) showDiff(changes []ChangeOp, created map[string]bool) {
	e.io.Printf("\n%s\n", strings.Repeat("─", 60))
	for _, op := range changes {
		tag := ""
		if created[op.Path] {
			tag = " (new file)"
		}
		e.io.Printf("\n%s%s\n", op.Path, tag)
		e.io.Printf("%s\n", op.ForwardDiff)
	}
}

// HandleRevision composes a summary of the prior run and re-enters Run as a
// fresh task prefixed by that summary.
func (e *Engine) HandleRevision(ctx context.Context, state *SessionState, revision string, showPlan bool) (*SessionState, error) {
	summary := e.buildRunSummary(state)
	freshTask := fmt.Sprintf("Previous run summary:\n%s\n\nUser revision: %s", summary, revision)
	return e.Run(ctx, freshTask, showPlan)
}

func (e *Engine) buildRunSummary(state *SessionState) string {
	lines := []string{
		fmt.Sprintf("Original task: %s", state.OriginalTask),
		fmt.Sprintf("Steps taken: %d", state.ToolCallCount),
	}

	if len(state.Changes) > 0 {
		lines = append(lines, "Successful changes:")
		for _, op := range state.Changes {
			lines = append(lines, fmt.Sprintf("  - %s", op.Path))
		}
	}

	if len(state.LastErrors) > 0 {
		lines = append(lines, "Last errors:")
		for _, msg := range firstN(state.LastErrors, 3) {
			lines = append(lines, fmt.Sprintf("  - %s", msg))
		}
	}

	return strings.Join(lines, "\n")
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func decodeInput(raw json.RawMessage) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
