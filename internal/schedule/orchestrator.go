package schedule

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Report is the outcome of applying a whole schedule.
type Report struct {
	// Legal is the AND of every step's local verdict.
	Legal bool
	Steps []StepResult
	// AdditionalInfo is the last non-empty step info.
	AdditionalInfo string
}

// Orchestrator applies schedule strings action by action.
type Orchestrator struct {
	interp *Interpreter
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator. A nil logger discards output.
func NewOrchestrator(logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{interp: NewInterpreter(logger), logger: logger}
}

// Run parses s and applies every action to prog in order. It keeps applying
// actions after an illegal step so the report covers the whole schedule;
// callers must not treat the program as legal unless a final global check
// agrees.
func (o *Orchestrator) Run(ctx context.Context, prog Program, s string) (Report, error) {
	rep := Report{Legal: true}

	sched, err := Parse(s)
	if err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	for i, a := range sched.Actions {
		step, err := o.interp.Apply(prog, a)
		if err != nil {
			return rep, fmt.Errorf("action %d: %w", i, err)
		}
		rep.Steps = append(rep.Steps, step)
		rep.Legal = rep.Legal && step.Legal
		if step.AdditionalInfo != "" {
			rep.AdditionalInfo = step.AdditionalInfo
		}
		if !step.Legal {
			o.logger.Debug("illegal step", zap.Int("index", i), zap.Stringer("action", a))
		}
	}

	return rep, nil
}
