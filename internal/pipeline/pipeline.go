// Package pipeline runs one schedule evaluation end to end: apply the
// actions, check legality, derive the IR and, for execution requests,
// generate code, compile it, resolve the wrapper and time it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Norgate-AV/polysched/internal/compiler"
	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/Norgate-AV/polysched/internal/result"
	"github.com/Norgate-AV/polysched/internal/runner"
	"github.com/Norgate-AV/polysched/internal/schedule"
	"go.uber.org/zap"
)

// DefaultRunTimeout bounds a wrapper run when Options.RunTimeout is unset.
const DefaultRunTimeout = 10 * time.Minute

// Program is a program session a pipeline can evaluate.
type Program interface {
	schedule.Program

	Name() string
	PrepareLegalityChecks()
	PerformFullDependencyAnalysis() error
	CheckLegality() bool
	IR() string
	EmitC(w io.Writer) error
	Annotations() ([]byte, error)
}

var _ Program = (*polyhedral.Program)(nil)

// Compiler builds <dir>/<name>.o.so from <dir>/<name>.c.
type Compiler interface {
	CompileShared(ctx context.Context, dir, name string) error
}

// WrapperResolver returns an executable wrapper for a program.
type WrapperResolver interface {
	Resolve(ctx context.Context, program, workDir string) (string, error)
}

type Request struct {
	Program   Program
	Schedule  string
	Operation Operation
}

type Options struct {
	// WorkDir holds generated code, shared objects and wrappers.
	WorkDir    string
	RunTimeout time.Duration
	RunArgs    []string
}

// Pipeline evaluates requests. It is safe for concurrent use as long as
// concurrent requests do not share a program name, since artifacts in
// WorkDir are named after the program.
type Pipeline struct {
	opts     Options
	orch     *schedule.Orchestrator
	compiler Compiler
	resolver WrapperResolver
	run      func(ctx context.Context, opts runner.Options) (runner.Outcome, error)
	logger   *zap.Logger
}

// New creates a pipeline. compiler and resolver are only used by execution
// requests and may be nil otherwise.
func New(opts Options, c Compiler, r WrapperResolver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	return &Pipeline{
		opts:     opts,
		orch:     schedule.NewOrchestrator(logger),
		compiler: c,
		resolver: r,
		run:      runner.Run,
		logger:   logger,
	}
}

// Run evaluates req. Illegal schedules and failed executions are reported
// in the result; errors are reserved for requests that cannot be evaluated
// at all (malformed schedules, unknown computations, toolchain crashes).
func (p *Pipeline) Run(ctx context.Context, req Request) (*result.Result, error) {
	prog := req.Program
	res := result.New(prog.Name())
	log := p.logger.With(zap.String("program", prog.Name()), zap.Stringer("operation", req.Operation))

	if req.Operation == Annotations {
		data, err := prog.Annotations()
		if err != nil {
			return nil, fmt.Errorf("annotations: %w", err)
		}
		res.IR = string(data)
		return res, nil
	}

	prog.PrepareLegalityChecks()
	if err := prog.PerformFullDependencyAnalysis(); err != nil {
		return nil, fmt.Errorf("dependency analysis: %w", err)
	}

	rep, err := p.orch.Run(ctx, prog, req.Schedule)
	if err != nil {
		return nil, err
	}
	res.AdditionalInfo = rep.AdditionalInfo

	prog.PrepareLegalityChecks()
	res.Legality = rep.Legal && prog.CheckLegality()
	res.IR = prog.IR()
	log.Debug("schedule applied", zap.Bool("legal", res.Legality), zap.Int("actions", len(rep.Steps)))

	if !res.Legality || req.Operation != Execution {
		return res, nil
	}

	if err := p.execute(ctx, prog, res, log); err != nil {
		return nil, err
	}
	return res, nil
}

// execute fills res.ExecTimes and res.Success. Only toolchain crashes and
// cancellation are returned as errors.
func (p *Pipeline) execute(ctx context.Context, prog Program, res *result.Result, log *zap.Logger) error {
	if p.compiler == nil || p.resolver == nil {
		return fmt.Errorf("execution requires a toolchain and a wrapper resolver")
	}

	name := prog.Name()
	if err := os.MkdirAll(p.opts.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	if err := p.emit(prog, filepath.Join(p.opts.WorkDir, name+".c")); err != nil {
		return err
	}

	if err := p.compiler.CompileShared(ctx, p.opts.WorkDir, name); err != nil {
		return p.fail(ctx, res, log, "compile", err)
	}

	wrapper, err := p.resolver.Resolve(ctx, name, p.opts.WorkDir)
	if err != nil {
		return p.fail(ctx, res, log, "resolve wrapper", err)
	}

	out, err := p.run(ctx, runner.Options{
		Path:    wrapper,
		Args:    p.opts.RunArgs,
		Dir:     p.opts.WorkDir,
		Timeout: p.opts.RunTimeout,
	})
	if err != nil {
		return p.fail(ctx, res, log, "run", err)
	}

	res.Success = out.Success
	res.ExecTimes = out.Output
	if !out.Success {
		log.Warn("wrapper failed", zap.Int("exit_code", out.ExitCode), zap.String("stderr", out.Stderr))
	}
	log.Debug("wrapper finished", zap.Duration("duration", out.Duration))
	return nil
}

func (p *Pipeline) emit(prog Program, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := prog.EmitC(f); err != nil {
		f.Close()
		return fmt.Errorf("codegen: %w", err)
	}
	return f.Close()
}

// fail records a failed execution stage in res, or returns err when the
// request must abort.
func (p *Pipeline) fail(ctx context.Context, res *result.Result, log *zap.Logger, stage string, err error) error {
	if errors.Is(err, compiler.ErrToolchainCrashed) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.Warn("execution failed", zap.String("stage", stage), zap.Error(err))
	res.Success = false
	return nil
}
