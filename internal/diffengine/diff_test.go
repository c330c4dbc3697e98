package diffengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidate_RejectsLazyPlaceholder(t *testing.T) {
	diff := "@@ -1,5 +1,5 @@\n def f():\n     pass\n-    old\n+    # ... rest of the function unchanged\n     return\n"
	err := Validate(diff)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "lazy placeholder")
}

func TestValidate_RejectsMissingHunkHeader(t *testing.T) {
	err := Validate("+ just a line\n- another\n")
	assert.Error(t, err)
}

func TestValidate_RejectsMalformedLinePrefix(t *testing.T) {
	diff := "@@ -1,4 +1,4 @@\n line one\n line two\n>bad prefix\n line three\n"
	err := Validate(diff)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "space, +, or -")
}

func TestValidate_RejectsInsufficientContext(t *testing.T) {
	diff := "@@ -5,1 +5,1 @@\n-old line\n+new line\n"
	err := Validate(diff)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient context")
}

func TestValidate_AcceptsThreeLinesContextBefore(t *testing.T) {
	diff := "@@ -1,5 +1,5 @@\n one\n two\n three\n-four\n+FOUR\n"
	assert.NoError(t, Validate(diff))
}

func TestValidate_AcceptsFileCreationHunk(t *testing.T) {
	diff := "@@ -0,0 +1,3 @@\n+line one\n+line two\n+line three\n"
	assert.NoError(t, Validate(diff))
}

func TestValidate_AcceptsAppendOnlyWithMinimalContext(t *testing.T) {
	diff := "@@ -10,1 +10,2 @@\n last existing line\n+new appended line\n"
	assert.NoError(t, Validate(diff))
}

func TestApply_ModifiesLineWithSufficientContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "one\ntwo\nthree\nfour\nfive\nsix\nseven\n")

	diff := "@@ -1,7 +1,7 @@\n one\n two\n three\n-four\n+FOUR\n five\n six\n seven\n"
	result, err := Apply(path, diff)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nthree\nFOUR\nfive\nsix\nseven\n", string(data))
	assert.Contains(t, result.ReverseDiff, "-FOUR")
	assert.Contains(t, result.ReverseDiff, "+four")
}

func TestApply_ReverseDiffRoundTrips(t *testing.T) {
	dir := t.TempDir()
	original := "one\ntwo\nthree\nfour\nfive\nsix\nseven\n"
	path := writeFile(t, dir, "f.txt", original)

	diff := "@@ -1,7 +1,7 @@\n one\n two\n three\n-four\n+FOUR\n five\n six\n seven\n"
	result, err := Apply(path, diff)
	require.NoError(t, err)

	_, err = Apply(path, result.ReverseDiff)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestApply_CreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.txt")

	diff := "@@ -0,0 +1,3 @@\n+alpha\n+beta\n+gamma\n"
	_, err := Apply(path, diff)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\ngamma\n", string(data))
}

func TestApply_LeavesFileUnchangedOnContextMismatch(t *testing.T) {
	dir := t.TempDir()
	original := "one\ntwo\nthree\nfour\nfive\n"
	path := writeFile(t, dir, "f.txt", original)

	diff := "@@ -1,5 +1,5 @@\n one\n two\n three\n-WRONG\n+FOUR\n five\n"
	_, err := Apply(path, diff)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrHunkMismatch)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestApply_LeavesFileUnchangedOnOutOfBoundsRange(t *testing.T) {
	dir := t.TempDir()
	original := "one\ntwo\nthree\n"
	path := writeFile(t, dir, "f.txt", original)

	diff := "@@ -50,4 +50,4 @@\n one\n two\n three\n-four\n+FOUR\n"
	_, err := Apply(path, diff)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrLineCountMismatch)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestApply_RejectsInvalidDiffWithoutTouchingFile(t *testing.T) {
	dir := t.TempDir()
	original := "one\ntwo\nthree\n"
	path := writeFile(t, dir, "f.txt", original)

	_, err := Apply(path, "not a diff at all")
	assert.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestApply_AppendOnlyHunkReportsWarning(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "last existing line\n")

	diff := "@@ -1,1 +1,2 @@\n last existing line\n+new appended line\n"
	result, err := Apply(path, diff)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "append-only")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "last existing line\nnew appended line\n", string(data))
}

func TestLineCountHint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "f.txt", "a\nb\nc\n")
	assert.Equal(t, 4, LineCountHint(path))
	assert.Equal(t, -1, LineCountHint(filepath.Join(dir, "missing.txt")))
}
