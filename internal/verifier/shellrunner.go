package verifier

import (
	"context"

	"github.com/alantheprice/span/internal/shellgate"
)

// ShellGateRunner adapts internal/shellgate.Run to the Runner interface.
type ShellGateRunner struct{}

// Run implements Runner.
func (ShellGateRunner) Run(ctx context.Context, command string) (stdout, stderr string, exitCode int, timedOut bool, err error) {
	result, runErr := shellgate.Run(ctx, command)
	if runErr != nil {
		if result.TimedOut {
			return "", "", 0, true, runErr
		}
		return "", "", 0, false, runErr
	}
	return result.Stdout, result.Stderr, result.ExitCode, false, nil
}
