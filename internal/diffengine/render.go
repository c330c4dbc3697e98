package diffengine

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ANSI color codes for the human-facing diff summary. Distinct from the
// machine-applied unified-diff path above: this is cosmetic, never parsed
// back in.
const (
	redColor    = "\x1b[31m"
	greenColor  = "\x1b[32m"
	yellowColor = "\x1b[33m"
	boldStyle   = "\x1b[1m"
	resetColor  = "\x1b[0m"
)

// RenderSummaryDiff renders a colorized, line-oriented summary of the change
// to before/after file content. Neither `span diff` nor the finalization
// report calls it; both print the raw forward diffs. It is grounded on pkg/changetracker/difflogger.go's use of
// github.com/sergi/go-diff, trimmed to the line-level granularity span's
// CLI needs.
func RenderSummaryDiff(filename, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	additions, deletions := countChanges(diffs)

	var out strings.Builder
	out.WriteString(fmt.Sprintf("%s%s%s%s", boldStyle, yellowColor, filename, resetColor))
	if additions > 0 {
		out.WriteString(fmt.Sprintf(" %s%s+%d%s", boldStyle, greenColor, additions, resetColor))
	}
	if deletions > 0 {
		out.WriteString(fmt.Sprintf(" %s%s-%d%s", boldStyle, redColor, deletions, resetColor))
	}
	out.WriteString("\n")

	for _, line := range unifiedLines(dmp, before, after) {
		out.WriteString(line)
		out.WriteString("\n")
	}

	return out.String()
}

func countChanges(diffs []diffmatchpatch.Diff) (additions, deletions int) {
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += strings.Count(d.Text, "\n") + boolToInt(d.Text != "" && !strings.HasSuffix(d.Text, "\n"))
		case diffmatchpatch.DiffDelete:
			deletions += strings.Count(d.Text, "\n") + boolToInt(d.Text != "" && !strings.HasSuffix(d.Text, "\n"))
		}
	}
	return
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// unifiedLines produces a line-level diff rendering (context lines prefixed
// "  ", deletions "- ", additions "+ ") by reducing each line to a single
// rune via DiffLinesToChars, running the ordinary char-level DiffMain, and
// expanding the result back with DiffCharsToLines — the same line-diff-via-
// char-reduction technique used for computing line hunks with
// diffmatchpatch, rather than a hand-rolled alignment algorithm.
func unifiedLines(dmp *diffmatchpatch.DiffMatchPatch, before, after string) []string {
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out []string
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				out = append(out, redColor+"- "+line+resetColor)
			case diffmatchpatch.DiffInsert:
				out = append(out, greenColor+"+ "+line+resetColor)
			default:
				out = append(out, "  "+line)
			}
		}
	}
	return out
}
