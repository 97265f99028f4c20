package pipeline

import (
	"fmt"
	"strings"
)

// Operation selects how far a request goes.
type Operation int

const (
	// Legality applies the schedule and reports legality and IR.
	Legality Operation = iota
	// Execution additionally compiles and times legal programs.
	Execution
	// Annotations describes the untransformed program.
	Annotations
)

func (o Operation) String() string {
	switch o {
	case Legality:
		return "legality"
	case Execution:
		return "execution"
	case Annotations:
		return "annotations"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// ParseOperation maps "legality", "execution" and "annotations", in any
// case, to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legality", "":
		return Legality, nil
	case "execution":
		return Execution, nil
	case "annotations":
		return Annotations, nil
	}
	return Legality, fmt.Errorf("unknown operation %q", s)
}
