package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alantheprice/span/internal/eventlog"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the most recent session from the event log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

type sessionSummary struct {
	task      string
	changes   int
	errors    []string
	timestamp string
}

func showStatus() error {
	events, err := loadEvents()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	sessions := map[string]*sessionSummary{}
	var order []string

	for _, ev := range events {
		sessionID, _ := ev.Data["session_id"].(string)
		switch ev.EventType {
		case "plan":
			if sessionID == "" {
				continue
			}
			task, _ := ev.Data["task"].(string)
			sessions[sessionID] = &sessionSummary{task: task, timestamp: ev.Timestamp}
			order = append(order, sessionID)
		case "tool_result":
			s, ok := sessions[sessionID]
			if !ok {
				continue
			}
			result, _ := ev.Data["result"].(string)
			lower := strings.ToLower(result)
			switch {
			case strings.Contains(lower, "applied and verified"):
				s.changes++
			case strings.Contains(lower, "error"):
				short := result
				if len(short) > 80 {
					short = short[:80]
				}
				s.errors = append(s.errors, short)
			}
		}
	}

	if len(order) == 0 {
		fmt.Println("No session data found.")
		return nil
	}

	lastID := order[len(order)-1]
	last := sessions[lastID]

	fmt.Printf("Last session: %s\n", lastID)
	fmt.Printf("Task: %s\n", last.task)
	fmt.Printf("Changes: %d\n", last.changes)
	if len(last.errors) > 0 {
		fmt.Printf("Errors: %d\n", len(last.errors))
		n := len(last.errors)
		if n > 3 {
			n = 3
		}
		for _, e := range last.errors[:n] {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func loadEvents() ([]eventlog.Event, error) {
	log, err := eventlog.New("")
	if err != nil {
		return nil, fmt.Errorf("error opening event log: %w", err)
	}
	return log.ReadAll()
}
