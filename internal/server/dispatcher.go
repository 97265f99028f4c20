// Package server exposes schedule evaluation over gRPC and serialises the
// pipeline runs behind it.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Norgate-AV/polysched/internal/compiler"
	"github.com/Norgate-AV/polysched/internal/pipeline"
	"github.com/Norgate-AV/polysched/internal/polyhedral"
	"github.com/Norgate-AV/polysched/internal/registry"
	"github.com/Norgate-AV/polysched/internal/result"
	"github.com/Norgate-AV/polysched/internal/schedule"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrCancelled is returned with the result of an execution that did not
// succeed
var ErrCancelled = errors.New("execution cancelled")

// Programs creates program sessions by name or numeric id
type Programs interface {
	Lookup(name string) (*polyhedral.Program, error)
}

// Evaluator runs one request against a program session
type Evaluator interface {
	Run(ctx context.Context, req pipeline.Request) (*result.Result, error)
}

var (
	_ Programs  = (*registry.Registry)(nil)
	_ Evaluator = (*pipeline.Pipeline)(nil)
)

// Dispatcher admits at most Concurrency pipeline runs at a time and never
// two runs of the same program, since they share artifact paths.
type Dispatcher struct {
	programs Programs
	eval     Evaluator
	sem      *semaphore.Weighted
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewDispatcher creates a dispatcher. concurrency below 1 is treated as 1.
func NewDispatcher(programs Programs, eval Evaluator, concurrency int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return &Dispatcher{
		programs: programs,
		eval:     eval,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		logger:   logger,
		locks:    map[string]chan struct{}{},
	}
}

// Dispatch evaluates req. When an execution does not succeed the result is
// returned together with ErrCancelled.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*result.Result, error) {
	log := d.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("program", req.Name),
		zap.Stringer("operation", req.Operation),
	)
	start := time.Now()

	prog, err := d.programs.Lookup(req.Name)
	if err != nil {
		log.Warn("lookup failed", zap.Error(err))
		return nil, err
	}

	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	unlock, err := d.lock(ctx, prog.Name())
	if err != nil {
		return nil, err
	}
	defer unlock()

	log.Debug("evaluating", zap.String("schedule", req.Schedule))

	res, err := d.eval.Run(ctx, pipeline.Request{
		Program:   prog,
		Schedule:  req.Schedule,
		Operation: req.Operation,
	})
	if err != nil {
		log.Warn("evaluation failed", zap.Error(err))
		return nil, err
	}

	log.Info("evaluated",
		zap.Bool("legality", res.Legality),
		zap.Bool("success", res.Success),
		zap.Duration("elapsed", time.Since(start)),
	)

	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrCancelled, res.Name)
	}

	return res, nil
}

// Evaluate is Dispatch with errors mapped to gRPC status codes.
func (d *Dispatcher) Evaluate(ctx context.Context, req Request) (*Reply, error) {
	res, err := d.Dispatch(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	return replyFromResult(res), nil
}

// lock takes the per-program lock, giving up when ctx ends
func (d *Dispatcher) lock(ctx context.Context, name string) (func(), error) {
	d.mu.Lock()
	ch, ok := d.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		d.locks[name] = ch
	}
	d.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, ErrCancelled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, registry.ErrUnknownProgram):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, compiler.ErrToolchainCrashed):
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, schedule.ErrMalformedAction),
		errors.Is(err, schedule.ErrUnsupportedTilingArity),
		errors.Is(err, schedule.ErrAmbiguousOrMissingComputation),
		errors.Is(err, schedule.ErrFusionArity),
		errors.Is(err, schedule.ErrInvalidTransformation),
		errors.Is(err, polyhedral.ErrInvalidDefinition):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	return status.Error(codes.Internal, err.Error())
}
