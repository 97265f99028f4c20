package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedAction is returned when a token does not match the
	// grammar of its discriminator.
	ErrMalformedAction = errors.New("malformed action")

	// ErrUnsupportedTilingArity is returned for tiling actions other than T1, T2 and T3.
	ErrUnsupportedTilingArity = errors.New("tiling only supports 1D, 2D and 3D")

	// ErrAmbiguousOrMissingComputation is returned when a listed name does
	// not match exactly one computation.
	ErrAmbiguousOrMissingComputation = errors.New("computation name must match exactly one computation")

	// ErrFusionArity is returned when a fusion does not list exactly two computations.
	ErrFusionArity = errors.New("fusion requires exactly two computations")

	// ErrInvalidTransformation is returned when the program rejects a transformation.
	ErrInvalidTransformation = errors.New("invalid transformation")
)

// ParseError describes where an action failed to parse.
type ParseError struct {
	Token string
	Pos   int
	Msg   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d in %q", e.Err, e.Msg, e.Pos, e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }
