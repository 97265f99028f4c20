// Package runner executes compiled wrapper binaries and captures their
// timing output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when the process outlives Options.Timeout.
var ErrTimeout = errors.New("execution timed out")

// waitDelay bounds how long Run waits for output pipes after a kill.
const waitDelay = 2 * time.Second

type Options struct {
	Path string
	Args []string
	// Dir is the working directory. Empty means the caller's.
	Dir string
	// Env is appended to the inherited environment.
	Env     []string
	Timeout time.Duration
}

// Outcome describes a finished process.
type Outcome struct {
	Success  bool
	Output   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Run executes opts.Path and waits for it. A non-zero exit is reported
// through Outcome, not as an error; errors are reserved for processes that
// could not be started and for timeouts.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Path == "" {
		return Outcome{ExitCode: -1}, fmt.Errorf("no command provided")
	}

	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, opts.Path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.WaitDelay = waitDelay
	if len(opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), opts.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Output:   trimNewline(stdoutBuf.String()),
		Stderr:   stderrBuf.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return out, fmt.Errorf("%s after %s: %w", opts.Path, opts.Timeout, ErrTimeout)
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, nil
		}
		return out, fmt.Errorf("failed to run %s: %w", opts.Path, err)
	}

	out.Success = true
	return out, nil
}

// trimNewline drops one trailing "\n" or "\r\n". A lone "\r" is output.
func trimNewline(s string) string {
	if !strings.HasSuffix(s, "\n") {
		return s
	}
	s = s[:len(s)-1]
	return strings.TrimSuffix(s, "\r")
}
