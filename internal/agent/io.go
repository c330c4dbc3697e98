package agent

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// IO is the narrow surface the engine uses for user-facing progress
// messages and the two interactive prompts (plan approval, keep-or-revert).
// Tests substitute a recording fake; production wiring uses StdIO.
type IO interface {
	Printf(format string, args ...any)
	Prompt(label string) (string, error)
}

// StdIO talks to the process's real stdin/stdout, matching the Python
// original's bare print()/input() calls.
type StdIO struct {
	reader *bufio.Reader
}

// NewStdIO constructs a StdIO reading from os.Stdin.
func NewStdIO() *StdIO {
	return &StdIO{reader: bufio.NewReader(os.Stdin)}
}

// Printf writes a formatted line to stdout.
func (s *StdIO) Printf(format string, args ...any) {
	fmt.Printf(format, args...)
}

// Prompt writes label, then reads and trims one line of input. EOF before
// any input is read back as an empty response, matching a piped/closed
// stdin falling through to the "no" branch of a y/N prompt.
func (s *StdIO) Prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := s.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
