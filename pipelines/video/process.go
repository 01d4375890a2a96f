package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrProcessTimeout is returned when a command outlives its timeout.
var ErrProcessTimeout = errors.New("process timed out")

// Command is an out-of-process invocation. Args are passed verbatim, never
// through a shell.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// ProcessResult is what a finished process left behind. A non-zero ExitCode is
// reported here, not as an error.
type ProcessResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ProcessRunner runs commands. The error is non-nil only when the process could
// not be started, timed out or was cancelled.
type ProcessRunner interface {
	Run(ctx context.Context, cmd Command) (*ProcessResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) (*ProcessResult, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	// Grandchildren holding stdout open must not keep Run blocked after a kill.
	c.WaitDelay = 5 * time.Second
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &ProcessResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w after %s", cmd.Name, ErrProcessTimeout, cmd.Timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("start %s: %w", cmd.Name, err)
}
