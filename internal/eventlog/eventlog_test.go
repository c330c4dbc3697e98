package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadAll_RoundTripsInWriteOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := New(path)
	require.NoError(t, err)

	require.NoError(t, log.Append("plan", map[string]any{"session_id": "abc12345", "task": "do x"}))
	require.NoError(t, log.Append("tool_call", map[string]any{"tool": "read_file"}))
	require.NoError(t, log.Append("tool_result", map[string]any{"result": "ok"}))

	events, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "plan", events[0].EventType)
	assert.Equal(t, "do x", events[0].Data["task"])
	assert.Equal(t, "tool_call", events[1].EventType)
	assert.Equal(t, "tool_result", events[2].EventType)
	assert.Equal(t, "ok", events[2].Data["result"])
}

func TestReadAll_MissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := New(path)
	require.NoError(t, err)

	events, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestClear_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := New(path)
	require.NoError(t, err)
	require.NoError(t, log.Append("plan", map[string]any{"session_id": "x"}))

	require.NoError(t, log.Clear())

	events, err := log.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, events)
}
