package agent

import "github.com/alantheprice/span/internal/llmbridge"

// toolSpecs builds the three tool schemas the execute loop offers the
// model, mirroring ReadFileTool/ApplyPatchTool/RunShellTool's
// to_anthropic_tool() output in the Python original.
func toolSpecs() []llmbridge.ToolSpec {
	return []llmbridge.ToolSpec{
		{
			Name:        "read_file",
			Description: "Read the contents of a file with line numbers",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to read",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "apply_patch",
			Description: "Apply a unified diff patch to a file. Must include >=3 context lines before OR after changes.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to patch",
					},
					"diff": map[string]any{
						"type":        "string",
						"description": "Unified diff content (without file headers). Must include >=3 context lines before OR after changes.",
					},
				},
				"required": []string{"path", "diff"},
			},
		},
		{
			Name:        "run_shell",
			Description: "Run restricted shell commands (pytest, ruff, mypy, python -m, git status/diff/log)",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "Shell command to execute (must be in allowlist)",
					},
				},
				"required": []string{"command"},
			},
		},
	}
}
