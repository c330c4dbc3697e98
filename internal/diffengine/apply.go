package diffengine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel error kinds the agent engine inspects to build its terse,
// model-facing hints ("line count mismatch" / "hunk doesn't match file").
var (
	ErrLineCountMismatch = errors.New("line range out of bounds")
	ErrHunkMismatch      = errors.New("hunk doesn't match file")
)

var headerRE = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

type header struct {
	oldStart, oldLen int
	newStart, newLen int
	isCreate         bool
}

func parseHeader(line string) (header, error) {
	m := headerRE.FindStringSubmatch(line)
	if m == nil {
		return header{}, fmt.Errorf("malformed hunk header: %s", line)
	}
	oldStart, _ := strconv.Atoi(m[1])
	oldLen := 1
	if m[2] != "" {
		oldLen, _ = strconv.Atoi(m[2])
	}
	newStart, _ := strconv.Atoi(m[3])
	newLen := 1
	if m[4] != "" {
		newLen, _ = strconv.Atoi(m[4])
	}
	return header{
		oldStart: oldStart,
		oldLen:   oldLen,
		newStart: newStart,
		newLen:   newLen,
		isCreate: oldStart == 0 && oldLen == 0,
	}, nil
}

// Apply applies diff to path. It validates the diff first, computes the
// reverse diff from the diff text alone (before touching the file, per
// spec.md §4.1's crash-recovery rationale), then applies the forward hunks.
// On any failure the file is left unchanged.
func Apply(path, diff string) (ApplyResult, error) {
	if err := Validate(diff); err != nil {
		return ApplyResult{}, fmt.Errorf("invalid patch format: %s", err)
	}

	reverse := reverseDiffText(path, diff)

	original, err := readLines(path)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("diffengine: read %s: %w", path, err)
	}

	hunks := extractHunks(normalize(path, diff))

	var warnings []string
	for i, h := range hunks {
		if isAppendOnlyMinimalContext(h) {
			warnings = append(warnings, fmt.Sprintf("hunk %d of %s accepted with less than 3 lines of context (append-only)", i+1, path))
		}
	}

	patched, err := applyHunks(original, hunks)
	if err != nil {
		return ApplyResult{}, err
	}

	if err := writeLines(path, patched); err != nil {
		return ApplyResult{}, fmt.Errorf("diffengine: write %s: %w", path, err)
	}

	return ApplyResult{ReverseDiff: reverse, Warnings: warnings}, nil
}

func applyHunks(original []string, hunks []Hunk) ([]string, error) {
	result := append([]string(nil), original...)
	offset := 0

	for _, h := range hunks {
		hdr, err := parseHeader(h.Header)
		if err != nil {
			return nil, err
		}

		var cursor int
		if hdr.isCreate {
			cursor = 0
		} else {
			cursor = hdr.oldStart - 1 + offset
		}
		if cursor < 0 || cursor > len(result) {
			return nil, fmt.Errorf("%w (file has %d lines)", ErrLineCountMismatch, len(original))
		}

		var segment []string
		pos := cursor
		consumedOld := 0

		// A diff ending in "\n" leaves an empty final element after
		// splitting; it is not a line of the hunk.
		lines := h.Lines
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		for _, line := range lines {
			if line == "" {
				line = " "
			}
			if line[0] == '\\' {
				continue // "\ No newline at end of file" marker
			}
			prefix, content := line[0], line[1:]
			switch prefix {
			case ' ':
				if pos >= len(result) || result[pos] != content {
					return nil, fmt.Errorf("%w: context mismatch at line %d", ErrHunkMismatch, pos+1)
				}
				segment = append(segment, content)
				pos++
				consumedOld++
			case '-':
				if pos >= len(result) || result[pos] != content {
					return nil, fmt.Errorf("%w: deletion mismatch at line %d", ErrHunkMismatch, pos+1)
				}
				pos++
				consumedOld++
			case '+':
				segment = append(segment, content)
			}
		}

		tail := append([]string(nil), result[pos:]...)
		result = append(append([]string(nil), result[:cursor]...), segment...)
		result = append(result, tail...)
		offset += len(segment) - consumedOld
	}

	return result, nil
}

// reverseDiffText swaps +/- prefixes while preserving hunk headers and
// context, and synthesizes fresh file headers — mirroring
// ApplyPatchTool._generate_reverse_diff in the Python original exactly,
// including its choice not to renumber @@ ranges.
func reverseDiffText(path, diff string) string {
	lines := []string{
		"--- " + path,
		"+++ " + path,
	}
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
			continue
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
			continue
		case strings.HasPrefix(line, "@@"):
			lines = append(lines, line)
		case strings.HasPrefix(line, "+"):
			lines = append(lines, "-"+line[1:])
		case strings.HasPrefix(line, "-"):
			lines = append(lines, "+"+line[1:])
		case strings.HasPrefix(line, " "):
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeLines(path string, lines []string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
