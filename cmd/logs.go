package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var (
	logsSession string
	logsTail    int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream recorded events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showLogs()
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsSession, "session", "", "Filter to a single session id")
	logsCmd.Flags().IntVar(&logsTail, "tail", 0, "Only show the last N events")
}

func showLogs() error {
	events, err := loadEvents()
	if err != nil {
		return err
	}

	if logsSession != "" {
		filtered := events[:0]
		for _, ev := range events {
			if sid, _ := ev.Data["session_id"].(string); sid == logsSession {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}

	if logsTail > 0 && len(events) > logsTail {
		events = events[len(events)-logsTail:]
	}

	for _, ev := range events {
		fmt.Printf("[%s] %s\n", ev.Timestamp, ev.EventType)

		keys := make([]string, 0, len(ev.Data))
		for k := range ev.Data {
			if k == "result" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			val := fmt.Sprintf("%v", ev.Data[k])
			if len(val) > 100 {
				val = val[:100] + "..."
			}
			fmt.Printf("  %s: %s\n", k, val)
		}
	}

	return nil
}
