// Package verifier runs span's staged, short-circuit verification pipeline
// over a patched file: syntax, lint, targeted tests, and — once per
// session, advisory only — a full type check.
//
// Grounded on original_source/span/core/verifier.py, with each subprocess
// stage routed through internal/shellgate's allowlist instead of calling
// exec directly, and the targeted-test set sourced from
// internal/depindex.FindAffectedTests.
package verifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies why a verification stage failed.
type Kind int

const (
	// KindNone indicates no failure (Result.Passed is true).
	KindNone Kind = iota
	KindSyntaxError
	KindLintError
	KindTestFailure
	KindTypeError
	KindToolMissing
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindSyntaxError:
		return "SyntaxError"
	case KindLintError:
		return "LintError"
	case KindTestFailure:
		return "TestFailure"
	case KindTypeError:
		return "TypeError"
	case KindToolMissing:
		return "ToolMissing"
	case KindTimeout:
		return "Timeout"
	default:
		return "None"
	}
}

// Result is the outcome of one verification stage or pipeline run.
type Result struct {
	Passed bool
	Kind   Kind
	Errors []string
}

func fail(kind Kind, message string) Result {
	return Result{Passed: false, Kind: kind, Errors: []string{message}}
}

func ok() Result {
	return Result{Passed: true}
}

// Runner abstracts shellgate.Run so tests can substitute a fake without
// spawning real subprocesses.
type Runner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, exitCode int, timedOut bool, err error)
}

// AffectedTestFinder abstracts depindex.FindAffectedTests.
type AffectedTestFinder interface {
	FindAffectedTests(modifiedFiles, testPatterns []string) ([]string, error)
}

// Config carries the toggles and tunables from span's configuration file
// that shape the pipeline's behavior.
type Config struct {
	Syntax        bool
	Ruff          bool
	Mypy          bool
	MypyFull      bool
	Pytest        bool
	PytestArgs    []string
	TestPatterns  []string
	FallbackTests []string
}

// Verifier runs the staged pipeline against a project using the supplied
// Runner for subprocess stages and AffectedTestFinder for targeted-test
// selection.
type Verifier struct {
	runner Runner
	index  AffectedTestFinder
	config Config
}

// New constructs a Verifier.
func New(runner Runner, index AffectedTestFinder, config Config) *Verifier {
	return &Verifier{runner: runner, index: index, config: config}
}

// VerifyPatch runs the short-circuit pipeline for one changed file: syntax,
// then lint, then targeted tests. The first failing (and enabled) stage
// returns immediately.
func (v *Verifier) VerifyPatch(ctx context.Context, path string) Result {
	if v.config.Syntax {
		if result := v.checkSyntax(ctx, path); !result.Passed {
			return result
		}
	}

	if v.config.Ruff {
		if result := v.checkLint(ctx, []string{path}); !result.Passed {
			return result
		}
	}

	if v.config.Pytest {
		if result := v.checkTests(ctx, []string{path}, false); !result.Passed {
			return result
		}
	}

	return ok()
}

// VerifyFinal runs the full type checker across the project. Its failures
// are advisory: callers must not treat them as grounds for revert.
func (v *Verifier) VerifyFinal(ctx context.Context) Result {
	if !v.config.MypyFull {
		return ok()
	}
	return v.checkTypes(ctx)
}

// checkSyntax parses path via ShellGate's allowlisted python3 -c rule
// (see SPEC_FULL.md §4.3: no in-process Python grammar is available in the
// retrieved corpus), mirroring check_syntax's in-process ast.parse.
func (v *Verifier) checkSyntax(ctx context.Context, path string) Result {
	script := fmt.Sprintf(
		"import ast,sys\n"+
			"p = %s\n"+
			"try:\n"+
			"    src = open(p).read()\n"+
			"except FileNotFoundError:\n"+
			"    sys.stderr.write('file not found: ' + p)\n"+
			"    sys.exit(2)\n"+
			"try:\n"+
			"    ast.parse(src)\n"+
			"except SyntaxError as e:\n"+
			"    sys.stderr.write('%%s:%%s: %%s' %% (p, e.lineno, e.msg))\n"+
			"    sys.exit(1)\n",
		pythonStringLiteral(path),
	)
	stdout, stderr, exitCode, timedOut, err := v.runner.Run(ctx, "python3 -c "+quoteShell(script))
	_ = stdout
	if timedOut {
		return fail(KindTimeout, "syntax check timed out")
	}
	if err != nil {
		return fail(KindToolMissing, fmt.Sprintf("python3 not available: %s", err))
	}
	if exitCode == 2 {
		return fail(KindSyntaxError, fmt.Sprintf("file not found: %s", path))
	}
	if exitCode != 0 {
		return fail(KindSyntaxError, fmt.Sprintf("syntax error in %s", strings.TrimSpace(stderr)))
	}
	return ok()
}

// checkLint runs ruff check against the given files.
func (v *Verifier) checkLint(ctx context.Context, files []string) Result {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	stdout, _, exitCode, timedOut, err := v.runner.Run(ctx, "ruff check "+strings.Join(files, " "))
	if timedOut {
		return fail(KindTimeout, "linting timed out after 30 seconds")
	}
	if err != nil {
		return fail(KindToolMissing, "ruff not found in PATH")
	}
	if exitCode != 0 {
		return fail(KindLintError, fmt.Sprintf("lint errors:\n%s", stdout))
	}
	return ok()
}

// checkTests selects the targeted or fallback test set (unless full is
// true, in which case the whole suite runs) and runs pytest against it.
func (v *Verifier) checkTests(ctx context.Context, modifiedFiles []string, full bool) Result {
	var testFiles []string
	if !full {
		affected, err := v.index.FindAffectedTests(modifiedFiles, v.config.TestPatterns)
		if err != nil {
			return fail(KindToolMissing, fmt.Sprintf("dependency index lookup failed: %s", err))
		}
		testFiles = affected
		if len(testFiles) == 0 {
			testFiles = v.config.FallbackTests
		}
		if len(testFiles) == 0 {
			return ok()
		}
	}

	args := append([]string{"pytest"}, v.config.PytestArgs...)
	if !full {
		args = append(args, testFiles...)
	}

	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()
	stdout, stderr, exitCode, timedOut, err := v.runner.Run(ctx, strings.Join(args, " "))
	if timedOut {
		return fail(KindTimeout, "tests timed out after 120 seconds")
	}
	if err != nil {
		return fail(KindToolMissing, "pytest not found in PATH")
	}
	if exitCode != 0 {
		return fail(KindTestFailure, fmt.Sprintf("test failures:\n%s\n%s", stdout, stderr))
	}
	return ok()
}

func (v *Verifier) checkTypes(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	stdout, _, exitCode, timedOut, err := v.runner.Run(ctx, "mypy --no-error-summary .")
	if timedOut {
		return fail(KindTimeout, "type checking timed out after 60 seconds")
	}
	if err != nil {
		return fail(KindToolMissing, "mypy not found in PATH")
	}
	if exitCode != 0 {
		return fail(KindTypeError, fmt.Sprintf("type errors:\n%s", stdout))
	}
	return ok()
}

// quoteShell produces a single shell-safe single-quoted token, since the
// script text may itself contain spaces and quotes that ShellGate's
// tokenizer must see as one argument.
func quoteShell(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// pythonStringLiteral renders path as a double-quoted Python string
// literal. Go and Python double-quoted string escaping agree closely
// enough for filesystem paths that strconv.Quote's output is valid Python.
func pythonStringLiteral(path string) string {
	return strconv.Quote(path)
}
