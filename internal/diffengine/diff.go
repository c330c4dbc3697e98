// Package diffengine validates, applies, and inverts unified diffs against
// working-tree files.
//
// No library in the retrieved corpus applies unified-diff hunks with this
// package's exact semantics (synthetic header synthesis, lazy-placeholder
// rejection, the "sufficient context" rule, and reverse-diff-by-prefix-swap
// computed before the forward patch is applied) — see DESIGN.md. The parser
// and applier here are grounded on original_source/span/tools/file_ops.py,
// the Python implementation this package replaces.
package diffengine

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// lazyPatterns mirrors ApplyPatchTool.LAZY_PATTERNS in the Python original:
// substrings that indicate the model elided real content instead of writing
// a complete patch.
var lazyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.\.\..*rest of`),
	regexp.MustCompile(`(?i)\.\.\..*existing`),
	regexp.MustCompile(`(?i)\.\.\..*unchanged`),
	regexp.MustCompile(`(?i)#.*TODO`),
	regexp.MustCompile(`(?i)//.*TODO`),
	regexp.MustCompile(`(?i)pass\s*#.*placeholder`),
}

// Hunk is one header-introduced change region of a unified diff.
type Hunk struct {
	Header string
	Lines  []string // each line retains its leading space/+/-/\ prefix
}

// Diff is a parsed unified-diff document.
type Diff struct {
	Hunks []Hunk
}

// ApplyResult is returned by Apply on success.
type ApplyResult struct {
	ReverseDiff string
	// Warnings carries one message per hunk accepted under the append-only
	// minimal-context exception, for the caller to log.
	Warnings []string
}

// Validate rejects diffs that don't meet the well-formedness and
// sufficient-context rules from spec.md §4.1. It returns a nil error when
// the diff is acceptable, a non-nil error with a specific reason otherwise.
func Validate(diff string) error {
	for _, pattern := range lazyPatterns {
		if pattern.MatchString(diff) {
			return fmt.Errorf("contains lazy placeholder pattern")
		}
	}

	if !strings.Contains(diff, "@@") {
		return fmt.Errorf("missing hunk header")
	}

	hunks := extractHunks(diff)
	if len(hunks) == 0 {
		return fmt.Errorf("no valid hunks found")
	}

	for _, h := range hunks {
		if err := validateHunkPrefixes(h); err != nil {
			return err
		}
		if !hasSufficientContext(h) {
			return fmt.Errorf("insufficient context lines")
		}
	}

	return nil
}

// extractHunks splits a patch body into its @@-introduced hunks, stopping a
// hunk at a following ---/+++/diff line the way file_ops.py's
// _extract_hunks does.
func extractHunks(diff string) []Hunk {
	var hunks []Hunk
	var current []string
	inHunk := false

	flush := func() {
		if len(current) > 0 {
			hunks = append(hunks, Hunk{Header: current[0], Lines: current[1:]})
		}
		current = nil
	}

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			flush()
			current = []string{line}
			inHunk = true
		case inHunk:
			if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "diff") {
				flush()
				inHunk = false
			} else {
				current = append(current, line)
			}
		}
	}
	flush()

	return hunks
}

func validateHunkPrefixes(h Hunk) error {
	if !strings.HasPrefix(h.Header, "@@") {
		return fmt.Errorf("missing hunk header")
	}
	for _, line := range h.Lines {
		if line == "" {
			continue
		}
		switch line[0] {
		case ' ', '+', '-', '\\':
		default:
			return fmt.Errorf("lines must start with space, +, or -")
		}
	}
	return nil
}

// hasSufficientContext implements the rule from spec.md §4.1: either ≥3
// context lines before the first change, or ≥3 after the last change in
// each hunk. File-creation hunks (@@ -0,0 +...) need no context.
// Append-only hunks (no deletions) with ≥1 leading context line are also
// accepted — a logged warning, not a rejection.
func hasSufficientContext(h Hunk) bool {
	if strings.Contains(h.Header, "-0,0") {
		return true
	}

	contextBefore, contextAfter := 0, 0
	seenChange := false
	hasDeletions := false

	for _, line := range h.Lines {
		switch {
		case strings.HasPrefix(line, " "):
			if !seenChange {
				contextBefore++
			} else {
				contextAfter++
			}
		case strings.HasPrefix(line, "-"):
			seenChange = true
			hasDeletions = true
			contextAfter = 0
		case strings.HasPrefix(line, "+"):
			seenChange = true
			contextAfter = 0
		}
	}

	if contextBefore >= 3 || contextAfter >= 3 {
		return true
	}

	if !hasDeletions && contextBefore >= 1 {
		// Accepted with a warning by the caller; see Apply.
		return true
	}

	return false
}

// isAppendOnlyMinimalContext reports whether a hunk was accepted under the
// append-only minimal-context exception, so callers can log the warning the
// spec requires.
func isAppendOnlyMinimalContext(h Hunk) bool {
	if strings.Contains(h.Header, "-0,0") {
		return false
	}
	contextBefore := 0
	seenChange := false
	hasDeletions := false
	for _, line := range h.Lines {
		switch {
		case strings.HasPrefix(line, " "):
			if !seenChange {
				contextBefore++
			}
		case strings.HasPrefix(line, "-"):
			seenChange = true
			hasDeletions = true
		case strings.HasPrefix(line, "+"):
			seenChange = true
		}
	}
	return !hasDeletions && contextBefore >= 1 && contextBefore < 3
}

// normalize prepends synthetic ---/+++ headers when the caller-supplied diff
// doesn't already carry file headers, matching ApplyPatchTool.execute's
// synthesis of a minimal patch(1)-compatible document.
func normalize(path, diff string) string {
	trimmed := strings.TrimSpace(diff)
	if strings.HasPrefix(trimmed, "---") || strings.HasPrefix(trimmed, "diff --git") {
		return diff
	}
	return fmt.Sprintf("--- %s\n+++ %s\n%s", path, path, diff)
}

// LineCountHint returns the number of newline-separated segments in path
// (a trailing newline counts as one more, empty segment), or -1 if it cannot
// be read — a cheap helper used to enrich apply-failure error messages.
func LineCountHint(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	return len(strings.Split(string(data), "\n"))
}

// readLines reads a file into its newline-split lines. The scanner drops the
// final empty element that strings.Split would keep after a trailing
// newline, so a file with and without a trailing newline yield the same
// lines; writeLines always ends a non-empty file with a newline.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
