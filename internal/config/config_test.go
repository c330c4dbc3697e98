package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDefaultFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	old, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(old)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitPathIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "span.yaml"))
	assert.Error(t, err)
}

func TestLoad_PartialOverridesKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "span.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: claude-3-opus-20240229
max_steps: 5
verification:
  mypy: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-3-opus-20240229", cfg.Model)
	assert.Equal(t, 5, cfg.MaxSteps)
	assert.True(t, cfg.Verification.Mypy)
	// untouched keys keep their defaults
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.APIKeyEnv)
	assert.True(t, cfg.Verification.Pytest)
	assert.Equal(t, 3, cfg.MaxRetriesPerStep)
}

func TestAPIKey_ReadsConfiguredEnvVar(t *testing.T) {
	cfg := Default()
	cfg.APIKeyEnv = "SPAN_TEST_KEY"
	t.Setenv("SPAN_TEST_KEY", "secret-value")
	assert.Equal(t, "secret-value", cfg.APIKey())
}
