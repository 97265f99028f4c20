package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/Norgate-AV/polysched/internal/codes"
	"go.uber.org/zap"
)

var (
	// ErrCompileFailed reports a toolchain run that exited unsuccessfully
	ErrCompileFailed = errors.New("compilation failed")

	// ErrToolchainCrashed reports a toolchain killed by a segmentation fault
	ErrToolchainCrashed = errors.New("toolchain crashed")
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// Toolchain runs compile and link steps
type Toolchain struct {
	opts        Options
	logger      *zap.Logger
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewToolchain creates a toolchain. A nil logger discards output.
func NewToolchain(opts Options, logger *zap.Logger) *Toolchain {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Toolchain{
		opts:   opts.withDefaults(),
		logger: logger,
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// Options returns the effective settings
func (t *Toolchain) Options() Options {
	return t.opts
}

// CompileShared compiles <dir>/<name>.c into <name>.o and <name>.o.so
func (t *Toolchain) CompileShared(ctx context.Context, dir, name string) error {
	cmds, err := GetSharedCommands(t.opts, dir, name)
	if err != nil {
		return err
	}

	for _, c := range cmds {
		if err := t.ExecuteCommand(ctx, c); err != nil {
			return err
		}
	}

	return nil
}

// CompileWrapper builds <dir>/<name>_wrapper from src
func (t *Toolchain) CompileWrapper(ctx context.Context, dir, name, src string) error {
	c, err := GetWrapperCommand(t.opts, dir, name, src)
	if err != nil {
		return err
	}

	return t.ExecuteCommand(ctx, *c)
}

// ExecuteCommand runs one toolchain step under the configured timeout
func (t *Toolchain) ExecuteCommand(ctx context.Context, sc ShellCommand) error {
	ctx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	t.logger.Debug("running toolchain", zap.String("command", sc.String()))

	var stderr bytes.Buffer
	c := t.execCommand(ctx, sc.Path, sc.Args...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stderr = &stderr
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %s: timed out after %s", ErrCompileFailed, sc.Path, t.opts.Timeout)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s: %w", ErrCompileFailed, sc.Path, err)
	}

	code := exitErr.ExitCode()
	if crashed(exitErr) {
		t.logger.Error("toolchain crashed", zap.String("command", sc.String()), zap.Int("exit_code", code))
		return fmt.Errorf("%w: %s: %s", ErrToolchainCrashed, sc.Path, codes.GetErrorMessage(codes.Segfault))
	}

	msg := strings.TrimSpace(stderr.String())
	t.logger.Warn("compilation failed",
		zap.String("command", sc.String()),
		zap.Int("exit_code", code),
		zap.String("stderr", msg),
	)

	return fmt.Errorf("%w (exit code %d): %s: %s", ErrCompileFailed, code, codes.GetErrorMessage(code), msg)
}

// crashed reports a SIGSEGV either as a signal or as a shell's 139 status
func crashed(exitErr *exec.ExitError) bool {
	if codes.IsSegfault(exitErr.ExitCode()) {
		return true
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		return ws.Signaled() && ws.Signal() == syscall.SIGSEGV
	}

	return false
}
