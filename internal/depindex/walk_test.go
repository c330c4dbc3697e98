package depindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAll_IndexesProjectRespectingIgnore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".venv"), 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "auth.py"), []byte("def login():\n    pass\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tests", "test_auth.py"), []byte("import src.auth\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".venv", "skip.py"), []byte("import os\n"), 0o644))

	idx := openTestIndex(t)
	require.NoError(t, BuildAll(idx, root, []string{".venv"}))

	hash, err := idx.FileHash("src/auth.py")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	hash, err = idx.FileHash(".venv/skip.py")
	require.NoError(t, err)
	assert.Empty(t, hash)

	affected, err := idx.FindAffectedTests([]string{"src/auth.py"}, []string{"tests/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/test_auth.py"}, affected)
}

func TestHasChanged_DetectsModifiedContent(t *testing.T) {
	idx := openTestIndex(t)
	require.NoError(t, idx.Upsert("a.py", "", nil, time.Now()))

	hash, err := idx.FileHash("a.py")
	require.NoError(t, err)
	assert.Empty(t, hash)

	changed, err := HasChanged(idx, "a.py", []byte("x = 1\n"))
	require.NoError(t, err)
	assert.True(t, changed)
}
