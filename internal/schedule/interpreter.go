package schedule

import (
	"fmt"

	"go.uber.org/zap"
)

// StepResult is the outcome of applying one action.
type StepResult struct {
	Action Action
	// Legal is the local verdict. Actions without a local check report true.
	Legal bool
	// AdditionalInfo is set by skews, e.g. "skewing_factors:1,1".
	AdditionalInfo string
}

// Interpreter applies single actions to a program.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter creates an interpreter. A nil logger discards output.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger}
}

// Apply resolves the action's computations and applies it to prog. Errors
// abort the request; illegality is reported through StepResult.Legal.
// Nothing is rolled back: transformations applied before an illegal
// verdict stay applied.
func (in *Interpreter) Apply(prog Program, a Action) (StepResult, error) {
	res := StepResult{Action: a, Legal: true}

	if f, ok := a.(Fuse); ok && len(f.Computations) != 2 {
		return res, fmt.Errorf("%s: %w, got %d", a, ErrFusionArity, len(f.Computations))
	}
	if err := resolve(prog, a.Comps()); err != nil {
		return res, fmt.Errorf("%s: %w", a, err)
	}

	var err error
	switch a := a.(type) {
	case Noop:
	case Parallelize:
		res.Legal = prog.LoopParallelizationIsLegal(a.Level, a.Computations)
		err = prog.TagParallelLevel(a.Computations[0], a.Level)
	case Unroll:
		res.Legal = prog.LoopUnrollingIsLegal(a.Level, a.Computations)
		err = each(a.Computations, func(c string) error { return prog.Unroll(c, a.Level, a.Factor) })
	case Interchange:
		err = each(a.Computations, func(c string) error { return prog.Interchange(c, a.Level1, a.Level2) })
	case Reverse:
		err = each(a.Computations, func(c string) error { return prog.Reverse(c, a.Level) })
	case Skew:
		res.Legal, res.AdditionalInfo, err = in.skew(prog, a)
	case Fuse:
		res.Legal, err = in.fuse(prog, a)
	case Tile:
		err = each(a.Computations, func(c string) error { return prog.Tile(c, a.Levels, a.Factors) })
		if err == nil && len(a.Computations) > 1 {
			err = prog.FuseAfterTiling(a.Computations, a.Dims())
		}
	default:
		return res, fmt.Errorf("%w: unhandled action %T", ErrMalformedAction, a)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w: %w", a, ErrInvalidTransformation, err)
	}

	in.logger.Debug("applied action",
		zap.Stringer("action", a),
		zap.Stringer("kind", a.Kind()),
		zap.Bool("legal", res.Legal),
	)
	return res, nil
}

func (in *Interpreter) skew(prog Program, a Skew) (bool, string, error) {
	f1, f2 := a.Factor1, a.Factor2
	if a.Auto() {
		outer, inner := prog.SkewingSolver(a.Computations, a.Level1, a.Level2)
		switch {
		case len(outer) > 0:
			f1, f2 = outer[0].F1, outer[0].F2
		case len(inner) > 0:
			f1, f2 = inner[0].F1, inner[0].F2
		default:
			in.logger.Debug("no skewing factors found", zap.Strings("comps", a.Computations))
			return false, "", nil
		}
		in.logger.Debug("solver chose skewing factors",
			zap.Int("f1", f1),
			zap.Int("f2", f2),
			zap.Int("outer_candidates", len(outer)),
			zap.Int("inner_candidates", len(inner)),
		)
	}

	info := fmt.Sprintf("skewing_factors:%d,%d", f1, f2)
	err := each(a.Computations, func(c string) error { return prog.Skew(c, a.Level1, a.Level2, f1, f2) })
	return true, info, err
}

func (in *Interpreter) fuse(prog Program, a Fuse) (bool, error) {
	first, second := a.Computations[0], a.Computations[1]
	if err := prog.FuseSchedGraph(first, second, a.Level); err != nil {
		return false, err
	}

	levels := make([]int, a.Level+1)
	for i := range levels {
		levels[i] = i
	}
	shifts := prog.FusionShiftCorrections(first, second, levels)
	for _, s := range shifts {
		if s.Amount == 0 {
			continue
		}
		if err := prog.Shift(second, s.Level, s.Amount); err != nil {
			return false, err
		}
	}
	return len(shifts) > 0, nil
}

func resolve(prog Program, comps []string) error {
	for _, c := range comps {
		if n := prog.CountComputations(c); n != 1 {
			return fmt.Errorf("%w: %q matches %d", ErrAmbiguousOrMissingComputation, c, n)
		}
	}
	return nil
}

func each(comps []string, fn func(string) error) error {
	for _, c := range comps {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
