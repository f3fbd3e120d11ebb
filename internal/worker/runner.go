package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Output is what a finished subprocess reported.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes the capture tool. A process that ran and exited non-zero
// is reported through Output.ExitCode with a nil error; the error is reserved
// for processes that could not be started or waited on.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (Output, error)
}

// ExecRunner runs the tool with os/exec and kills it when ctx ends.
type ExecRunner struct {
	// WaitDelay bounds how long to wait for output pipes after a kill
	// (default 5s).
	WaitDelay time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args []string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 5 * time.Second
	}
	killProcessGroup(cmd)

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, fmt.Errorf("run %s: %w", name, err)
}
