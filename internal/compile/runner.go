package compile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// Runner executes commands. It returns the combined output even on failure.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands as child processes. The process is killed when
// ctx is done.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = 5 * time.Second

	out, err := c.CombinedOutput()
	if err == nil {
		return out, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return out, fmt.Errorf("%s: %w", cmd.Name, ErrToolingUnavailable)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%s: %w", cmd.Name, ErrTimeout)
	}
	if ctx.Err() != nil {
		return out, fmt.Errorf("%s: %w", cmd.Name, ctx.Err())
	}
	return out, fmt.Errorf("%s: %w", cmd.Name, err)
}
