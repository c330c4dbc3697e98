// Package agent implements span's turn-loop engine: it drives a plan-then-
// execute conversation with the model, intercepts apply_patch calls through
// a verify-or-revert routine, and owns the accept/keep/revert decision at
// the end of a session.
//
// Grounded on original_source/span/core/agent.py (Agent, AgentState,
// ChangeOp, AgentLimits, RevertError — the whole control flow this package
// ports), with original_source/span/tools/file_ops.py and
// original_source/span/tools/shell.py grounding the three tool
// implementations (read_file, apply_patch, run_shell) that the loop
// dispatches to.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/alantheprice/span/internal/llmbridge"
)

// ChangeOp is one accepted edit, carrying the diff pair a rollback needs.
type ChangeOp struct {
	Path        string
	ForwardDiff string
	ReverseDiff string
	Timestamp   time.Time
	StepID      int
}

// AgentLimits bounds one run's resource consumption.
type AgentLimits struct {
	MaxTurns           int
	MaxToolCalls       int
	MaxPatchAttempts   int
	MaxRetriesPerPatch int
}

// DefaultLimits mirrors AgentLimits' dataclass defaults in the Python
// original; MaxTurns and MaxRetriesPerPatch are normally overridden from
// config.Config's max_steps/max_retries_per_step.
func DefaultLimits() AgentLimits {
	return AgentLimits{
		MaxTurns:           20,
		MaxToolCalls:       50,
		MaxPatchAttempts:   15,
		MaxRetriesPerPatch: 3,
	}
}

// SessionState is the full mutable record of one run.
type SessionState struct {
	SessionID         string
	Messages          []llmbridge.Message
	Changes           []ChangeOp
	TurnCount         int
	ToolCallCount     int
	PatchAttemptCount int
	LastErrors        []string
	OriginalTask      string

	RetryCount   map[string]int
	CreatedFiles map[string]bool
}

func newSessionState(sessionID, task string) *SessionState {
	return &SessionState{
		SessionID:    sessionID,
		OriginalTask: task,
		RetryCount:   map[string]int{},
		CreatedFiles: map[string]bool{},
	}
}

// FailedRevert names one ChangeOp whose reverse diff could not be applied
// during a rollback.
type FailedRevert struct {
	Path        string
	ReverseDiff string
	Reason      string
}

// RevertError is raised when revertAll cannot restore every changed file.
type RevertError struct {
	FailedOps []FailedRevert
}

func (e *RevertError) Error() string {
	paths := make([]string, len(e.FailedOps))
	for i, op := range e.FailedOps {
		paths[i] = op.Path
	}
	return fmt.Sprintf("failed to revert changes in: %s", strings.Join(paths, ", "))
}
