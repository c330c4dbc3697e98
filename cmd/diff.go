package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var diffSession string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Reconstruct per-file diffs from a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showDiff()
	},
}

func init() {
	diffCmd.Flags().StringVar(&diffSession, "session", "", "Filter to a single session id")
}

type pathDiff struct {
	path string
	diff string
}

func showDiff() error {
	events, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events found.")
		return nil
	}

	var changes []pathDiff
	for _, ev := range events {
		if ev.EventType != "tool_call" {
			continue
		}
		if diffSession != "" {
			if sid, _ := ev.Data["session_id"].(string); sid != diffSession {
				continue
			}
		}
		tool, _ := ev.Data["tool"].(string)
		if tool != "apply_patch" {
			continue
		}
		argsRaw, ok := ev.Data["args"].(map[string]any)
		if !ok {
			continue
		}
		path, _ := argsRaw["path"].(string)
		diff, _ := argsRaw["diff"].(string)
		changes = append(changes, pathDiff{path: path, diff: diff})
	}

	if len(changes) == 0 {
		fmt.Println("No changes found.")
		return nil
	}

	banner := strings.Repeat("=", 60)
	fmt.Println(banner)
	fmt.Println("CHANGES")
	fmt.Println(banner)

	sep := strings.Repeat("-", 60)
	for _, c := range changes {
		fmt.Println()
		fmt.Println(c.path)
		fmt.Println(sep)
		fmt.Println(c.diff)
	}

	return nil
}
