package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/span/internal/config"
	"github.com/alantheprice/span/internal/diffengine"
	"github.com/alantheprice/span/internal/llmbridge"
	"github.com/alantheprice/span/internal/shellgate"
	"github.com/alantheprice/span/internal/verifier"
)

func textMessage(text string) *anthropic.Message {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}}}
}

func toolUseMessage(id, name string, input json.RawMessage) *anthropic.Message {
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "tool_use", ID: id, Name: name, Input: input}}}
}

// scriptedMessages returns its responses in order on every Send call,
// repeating the last one once exhausted so a loop never sees a nil message.
type scriptedMessages struct {
	responses []*anthropic.Message
	calls     int
}

func (s *scriptedMessages) Send(ctx context.Context, system string, messages []llmbridge.Message, tools []llmbridge.ToolSpec) (*anthropic.Message, error) {
	if len(s.responses) == 0 {
		return textMessage(""), nil
	}
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], nil
}

type fakeVerifier struct {
	patchResult verifier.Result
	finalResult verifier.Result
}

func (f *fakeVerifier) VerifyPatch(ctx context.Context, path string) verifier.Result { return f.patchResult }
func (f *fakeVerifier) VerifyFinal(ctx context.Context) verifier.Result              { return f.finalResult }

type eventRecord struct {
	eventType string
	data      map[string]any
}

type fakeEvents struct {
	events []eventRecord
}

func (f *fakeEvents) Append(eventType string, data map[string]any) error {
	f.events = append(f.events, eventRecord{eventType: eventType, data: data})
	return nil
}

type fakeIO struct {
	prompts []string
	idx     int
}

func (f *fakeIO) Printf(format string, args ...any) {}

func (f *fakeIO) Prompt(label string) (string, error) {
	if f.idx >= len(f.prompts) {
		return "", nil
	}
	r := f.prompts[f.idx]
	f.idx++
	return r, nil
}

type countingApplier struct {
	calls int
	err   error
}

func (c *countingApplier) Apply(path, diff string) (diffengine.ApplyResult, error) {
	c.calls++
	return diffengine.ApplyResult{}, c.err
}

type recordingApplier struct {
	inner PatchApplier
	order []string
}

func (r *recordingApplier) Apply(path, diff string) (diffengine.ApplyResult, error) {
	r.order = append(r.order, path)
	return r.inner.Apply(path, diff)
}

func TestExecuteLoop_AcceptsSingleVerifiedEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	original := "x = 1\ny = 2\nz = 3\nw = 4\nv = 5\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	diff := "@@ -1,5 +1,5 @@\n-x = 1\n+x = 11\n y = 2\n z = 3\n w = 4\n v = 5\n"
	input, err := json.Marshal(map[string]string{"path": path, "diff": diff})
	require.NoError(t, err)

	llm := &scriptedMessages{responses: []*anthropic.Message{
		textMessage("1) Goal: edit a.py"),
		toolUseMessage("call-1", "apply_patch", input),
		textMessage("done"),
	}}
	events := &fakeEvents{}
	v := &fakeVerifier{patchResult: verifier.Result{Passed: true}}

	e := New(config.Default(), DefaultLimits(), llm, v, events, shellRunnerFunc(shellgate.Run), defaultApplier{}, &fakeIO{})

	state, err := e.Run(context.Background(), "edit a.py", false)
	require.NoError(t, err)

	require.Len(t, state.Changes, 1)
	assert.Equal(t, path, state.Changes[0].Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "x = 11")

	found := false
	for _, ev := range events.events {
		if ev.eventType == "tool_result" {
			if text, ok := ev.data["result"].(string); ok && strings.Contains(strings.ToLower(text), "applied and verified") {
				found = true
			}
		}
	}
	assert.True(t, found, "expected a tool_result event mentioning 'applied and verified'")
}

func TestExecuteLoop_RevertsOnVerificationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	original := "x = 1\ny = 2\nz = 3\nw = 4\nv = 5\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	diff := "@@ -1,5 +1,5 @@\n-x = 1\n+x = eleven\n y = 2\n z = 3\n w = 4\n v = 5\n"
	input, err := json.Marshal(map[string]string{"path": path, "diff": diff})
	require.NoError(t, err)

	llm := &scriptedMessages{responses: []*anthropic.Message{
		textMessage("plan"),
		toolUseMessage("call-1", "apply_patch", input),
		textMessage("stopping"),
	}}
	v := &fakeVerifier{patchResult: verifier.Result{
		Passed: false,
		Kind:   verifier.KindSyntaxError,
		Errors: []string{"a.py:1: invalid syntax"},
	}}
	events := &fakeEvents{}

	e := New(config.Default(), DefaultLimits(), llm, v, events, shellRunnerFunc(shellgate.Run), defaultApplier{}, &fakeIO{})

	state, err := e.Run(context.Background(), "edit a.py", false)
	require.NoError(t, err)

	assert.Empty(t, state.Changes)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))

	require.NotEmpty(t, state.LastErrors)
	assert.Contains(t, state.LastErrors[0], "invalid syntax")
	assert.Equal(t, 1, state.RetryCount[path])
}

func TestExecutePatchWithVerification_RetryExhaustionBlocksApplier(t *testing.T) {
	path := "b.py"
	diff := "bad diff"
	input, err := json.Marshal(map[string]string{"path": path, "diff": diff})
	require.NoError(t, err)

	llm := &scriptedMessages{responses: []*anthropic.Message{
		textMessage("plan"),
		toolUseMessage("c1", "apply_patch", input),
		toolUseMessage("c2", "apply_patch", input),
		toolUseMessage("c3", "apply_patch", input),
		toolUseMessage("c4", "apply_patch", input),
		textMessage("done"),
	}}
	applier := &countingApplier{err: diffengine.ErrHunkMismatch}
	v := &fakeVerifier{}
	events := &fakeEvents{}
	limits := AgentLimits{MaxTurns: 10, MaxToolCalls: 10, MaxPatchAttempts: 10, MaxRetriesPerPatch: 3}

	e := New(config.Default(), limits, llm, v, events, shellRunnerFunc(shellgate.Run), applier, &fakeIO{})

	state, err := e.Run(context.Background(), "patch b.py", false)
	require.NoError(t, err)

	assert.Equal(t, 4, state.PatchAttemptCount)
	assert.Equal(t, 3, applier.calls)
}

func TestFinalize_RevertsInReverseOrderOnDecline(t *testing.T) {
	dir := t.TempDir()
	originalContent := "a = 1\nb = 2\nc = 3\nd = 4\n"
	names := []string{"p.py", "q.py", "r.py"}
	paths := map[string]string{}
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(originalContent), 0o644))
		paths[name] = p
	}

	recorder := &recordingApplier{inner: defaultApplier{}}

	var changes []ChangeOp
	diff := "@@ -1,4 +1,4 @@\n-a = 1\n+a = 11\n b = 2\n c = 3\n d = 4\n"
	for _, name := range names {
		p := paths[name]
		result, err := recorder.inner.Apply(p, diff)
		require.NoError(t, err)
		changes = append(changes, ChangeOp{Path: p, ForwardDiff: diff, ReverseDiff: result.ReverseDiff})
	}
	recorder.order = nil // ignore the forward applies above; only track revertAll's calls

	v := &fakeVerifier{finalResult: verifier.Result{Passed: true}}
	events := &fakeEvents{}
	io := &fakeIO{prompts: []string{"n"}}
	e := New(config.Default(), DefaultLimits(), &scriptedMessages{}, v, events, shellRunnerFunc(shellgate.Run), recorder, io)

	state := newSessionState("sess1", "task")
	state.Changes = changes

	kept, err := e.Finalize(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, kept)

	require.Equal(t, []string{paths["r.py"], paths["q.py"], paths["p.py"]}, recorder.order)

	for _, name := range names {
		data, err := os.ReadFile(paths[name])
		require.NoError(t, err)
		assert.Equal(t, originalContent, string(data), "file %s should be reverted", name)
	}
}
