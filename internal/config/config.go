// Package config loads span's project-local YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// VerificationConfig toggles which verification stages run.
type VerificationConfig struct {
	Syntax     bool     `yaml:"syntax"`
	Ruff       bool     `yaml:"ruff"`
	Mypy       bool     `yaml:"mypy"`
	MypyFull   bool     `yaml:"mypy_full"`
	Pytest     bool     `yaml:"pytest"`
	PytestArgs []string `yaml:"pytest_args"`
}

// Config is the immutable configuration for one span session.
type Config struct {
	Model             string             `yaml:"model"`
	APIKeyEnv         string             `yaml:"api_key_env"`
	Ignore            []string           `yaml:"ignore"`
	Verification      VerificationConfig `yaml:"verification"`
	TestPatterns      []string           `yaml:"test_patterns"`
	FallbackTests     []string           `yaml:"fallback_tests"`
	MaxSteps          int                `yaml:"max_steps"`
	MaxRetriesPerStep int                `yaml:"max_retries_per_step"`
}

// Default returns the configuration used when no span.yaml is present,
// matching the Python original's dataclass defaults.
func Default() Config {
	return Config{
		Model:     "claude-sonnet-4-20250514",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		Ignore:    []string{".git", "__pycache__", ".venv", "node_modules", ".span"},
		Verification: VerificationConfig{
			Syntax:     true,
			Ruff:       true,
			Mypy:       false,
			MypyFull:   true,
			Pytest:     true,
			PytestArgs: []string{"-x", "--tb=short"},
		},
		TestPatterns:      []string{"tests/"},
		FallbackTests:     nil,
		MaxSteps:          15,
		MaxRetriesPerStep: 3,
	}
}

// APIKey returns the value of the environment variable named by APIKeyEnv.
func (c Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}

// Load reads span.yaml from the project root. A missing file at the default
// path is not an error — Default() is returned instead, matching
// load_config's behavior in the Python original. An explicitly requested
// path that is missing IS an error.
func Load(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config: determine working directory: %w", err)
		}
		path = filepath.Join(cwd, "span.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return raw.toConfig(), nil
}

// rawConfig mirrors Config but with every field optional, so we can tell a
// present-but-zero value apart from an absent key and apply defaults
// key-by-key the way _dict_to_config does in the Python original.
type rawConfig struct {
	Model             *string          `yaml:"model"`
	APIKeyEnv         *string          `yaml:"api_key_env"`
	Ignore            []string         `yaml:"ignore"`
	Verification      *rawVerification `yaml:"verification"`
	TestPatterns      []string         `yaml:"test_patterns"`
	FallbackTests     []string         `yaml:"fallback_tests"`
	MaxSteps          *int             `yaml:"max_steps"`
	MaxRetriesPerStep *int             `yaml:"max_retries_per_step"`
}

type rawVerification struct {
	Syntax     *bool    `yaml:"syntax"`
	Ruff       *bool    `yaml:"ruff"`
	Mypy       *bool    `yaml:"mypy"`
	MypyFull   *bool    `yaml:"mypy_full"`
	Pytest     *bool    `yaml:"pytest"`
	PytestArgs []string `yaml:"pytest_args"`
}

func (r rawConfig) toConfig() Config {
	cfg := Default()

	if r.Model != nil {
		cfg.Model = *r.Model
	}
	if r.APIKeyEnv != nil {
		cfg.APIKeyEnv = *r.APIKeyEnv
	}
	if r.Ignore != nil {
		cfg.Ignore = r.Ignore
	}
	if r.TestPatterns != nil {
		cfg.TestPatterns = r.TestPatterns
	}
	if r.FallbackTests != nil {
		cfg.FallbackTests = r.FallbackTests
	}
	if r.MaxSteps != nil {
		cfg.MaxSteps = *r.MaxSteps
	}
	if r.MaxRetriesPerStep != nil {
		cfg.MaxRetriesPerStep = *r.MaxRetriesPerStep
	}

	if v := r.Verification; v != nil {
		if v.Syntax != nil {
			cfg.Verification.Syntax = *v.Syntax
		}
		if v.Ruff != nil {
			cfg.Verification.Ruff = *v.Ruff
		}
		if v.Mypy != nil {
			cfg.Verification.Mypy = *v.Mypy
		}
		if v.MypyFull != nil {
			cfg.Verification.MypyFull = *v.MypyFull
		}
		if v.Pytest != nil {
			cfg.Verification.Pytest = *v.Pytest
		}
		if v.PytestArgs != nil {
			cfg.Verification.PytestArgs = v.PytestArgs
		}
	}

	return cfg
}
