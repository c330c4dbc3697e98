package depindex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.db")
	idx, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestExtractImports_PlainAndFromImport(t *testing.T) {
	source := "import os\nimport src.auth\nfrom src.auth import login\nfrom .sibling import helper\n"
	imports := ExtractImports(source)
	assert.Contains(t, imports, "os")
	assert.Contains(t, imports, "src.auth")
	assert.Contains(t, imports, "sibling")
}

func TestUpsertAndResolve_DirectEdgeOnly(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()

	require.NoError(t, idx.Upsert("src/auth.py", "hash-a", nil, now))
	require.NoError(t, idx.Upsert("tests/test_auth.py", "hash-t", []string{"src.auth"}, now))
	require.NoError(t, idx.Upsert("tests/test_other.py", "hash-o", []string{"src.other"}, now))

	require.NoError(t, idx.Resolve())

	affected, err := idx.FindAffectedTests([]string{"src/auth.py"}, []string{"tests/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/test_auth.py"}, affected)
}

func TestFindAffectedTests_ModifiedTestFileIncludesItself(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()
	require.NoError(t, idx.Upsert("tests/test_auth.py", "hash-t", nil, now))
	require.NoError(t, idx.Resolve())

	affected, err := idx.FindAffectedTests([]string{"tests/test_auth.py"}, []string{"tests/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/test_auth.py"}, affected)
}

func TestFindAffectedTests_NoModifiedFilesReturnsEmpty(t *testing.T) {
	idx := openTestIndex(t)
	affected, err := idx.FindAffectedTests(nil, []string{"tests/"})
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestResolve_PackageInitForm(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()
	require.NoError(t, idx.Upsert("pkg/__init__.py", "hash-init", nil, now))
	require.NoError(t, idx.Upsert("tests/test_pkg.py", "hash-t", []string{"pkg"}, now))

	require.NoError(t, idx.Resolve())

	affected, err := idx.FindAffectedTests([]string{"pkg/__init__.py"}, []string{"tests/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/test_pkg.py"}, affected)
}

func TestFileHash_UnknownFileReturnsEmpty(t *testing.T) {
	idx := openTestIndex(t)
	hash, err := idx.FileHash("nope.py")
	require.NoError(t, err)
	assert.Empty(t, hash)
}
