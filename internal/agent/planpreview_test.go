package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPlanPreview_KeepsBulletedLinesUpToSix(t *testing.T) {
	plan := strings.Join([]string{
		"- first item",
		"- second item",
		"- third item",
		"- fourth item",
		"- fifth item",
		"- sixth item",
		"- seventh item should be dropped by the six-line cap",
	}, "\n")

	preview := formatPlanPreview(plan)

	assert.True(t, strings.HasPrefix(preview, "Plan:\n"))
	lines := strings.Split(preview, "\n")
	assert.LessOrEqual(t, len(lines)-1, 6)
	assert.Contains(t, preview, "sixth item")
	assert.NotContains(t, preview, "seventh item")
}

func TestFormatPlanPreview_SkipsSectionHeaderRestatements(t *testing.T) {
	plan := "1) Goal: plan for refactor\n- Approach taken from context\n- concrete step one"

	preview := formatPlanPreview(plan)

	assert.NotContains(t, preview, "plan for refactor")
	assert.NotContains(t, preview, "Approach taken from context")
	assert.Contains(t, preview, "concrete step one")
}

func TestFormatPlanPreview_FallsBackToColonSplitWhenNoBullets(t *testing.T) {
	plan := "Goal: fix the off-by-one error\nNotes: covered by existing tests"

	preview := formatPlanPreview(plan)

	assert.Contains(t, preview, "fix the off-by-one error")
	assert.Contains(t, preview, "covered by existing tests")
}

func TestFormatPlanPreview_FallsBackToWordTruncationWhenNothingMatches(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = "word"
	}
	plan := strings.Join(words, " ")

	preview := formatPlanPreview(plan)

	assert.True(t, strings.HasPrefix(preview, "Plan:\n  • "))
	assert.LessOrEqual(t, len(preview), len("Plan:\n  • ")+200)
}
