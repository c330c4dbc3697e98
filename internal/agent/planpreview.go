package agent

import "strings"

// planBulletPrefixes mirrors the numbered/bulleted markers
// _format_plan_preview recognizes as the start of a plan line worth keeping.
var planBulletPrefixes = []string{"1)", "2)", "3)", "4)", "5)", "6)", "-", "•", "*", "#"}

// skippedLeadWords are section headers the compressor drops even when they
// carry a recognized bullet marker, since they restate the section rather
// than add content.
var skippedLeadWords = []string{"plan", "goal", "approach"}

// formatPlanPreview compresses a free-text plan into at most six bulleted
// lines for the pre-execution preview, exactly mirroring
// Agent._format_plan_preview: strip numbering/bullet markers and bold
// markup from each line, keep lines under bulleted markers (skipping
// section headers), otherwise fall back to text after a colon, and if
// nothing qualifies fall back to the plan's first ~50 words.
func formatPlanPreview(plan string) string {
	var lines []string

	for _, raw := range strings.Split(plan, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		clean := strings.TrimSpace(strings.TrimLeft(line, "123456)-•*# "))
		clean = strings.TrimSpace(strings.ReplaceAll(clean, "**", ""))

		switch {
		case startsWithAny(line, planBulletPrefixes):
			if clean == "" || len(lines) >= 6 {
				continue
			}
			if startsWithAny(strings.ToLower(clean), skippedLeadWords) {
				continue
			}
			lines = append(lines, "  • "+clean)

		case strings.Contains(line, ":"):
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}
			tail := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(parts[1]), "**", ""))
			if tail == "" || len(lines) >= 6 {
				continue
			}
			lines = append(lines, "  • "+tail)
		}
	}

	if len(lines) == 0 {
		words := strings.Fields(plan)
		if len(words) > 50 {
			words = words[:50]
		}
		summary := strings.Join(words, " ")
		if len(summary) > 200 {
			summary = summary[:197] + "..."
		}
		return "Plan:\n  • " + summary
	}

	return "Plan:\n" + strings.Join(lines, "\n")
}

func startsWithAny(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
