package claude

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// runner abstracts subprocess execution so tests can script outcomes.
type runner interface {
	Run(ctx context.Context, req runRequest) (runOutput, error)
}

type runRequest struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// runOutput carries the captured streams and exit code. A non-zero exit is
// reported here with a nil error; errors are reserved for launch failures
// and context expiry.
type runOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, req runRequest) (runOutput, error) {
	cmd := exec.CommandContext(ctx, req.Command, req.Args...)
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	// Give the process a moment to die after the context kill signal before
	// Wait gives up on its pipes.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := runOutput{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}
