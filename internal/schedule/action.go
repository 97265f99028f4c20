// Package schedule parses schedule strings and applies their actions to a
// program representation.
package schedule

import (
	"fmt"
	"strings"
)

// Kind identifies an action variant.
type Kind int

const (
	KindNoop Kind = iota
	KindParallelize
	KindUnroll
	KindInterchange
	KindReverse
	KindSkew
	KindFuse
	KindTile
)

var kindNames = map[Kind]string{
	KindNoop:        "noop",
	KindParallelize: "parallelize",
	KindUnroll:      "unroll",
	KindInterchange: "interchange",
	KindReverse:     "reverse",
	KindSkew:        "skew",
	KindFuse:        "fuse",
	KindTile:        "tile",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is one parsed transformation. Implementations are immutable.
type Action interface {
	Kind() Kind
	// Comps returns the target computations in the order they were listed.
	Comps() []string
	// String renders the action in its canonical textual form.
	String() string

	sealed()
}

type Noop struct{}

type Parallelize struct {
	Level        int
	Computations []string
}

type Unroll struct {
	Level        int
	Factor       int
	Computations []string
}

type Interchange struct {
	Level1       int
	Level2       int
	Computations []string
}

type Reverse struct {
	Level        int
	Computations []string
}

// Skew with both factors zero asks the program's solver for factors.
type Skew struct {
	Level1       int
	Level2       int
	Factor1      int
	Factor2      int
	Computations []string
}

// Auto reports whether the factors are left to the solver.
func (s Skew) Auto() bool { return s.Factor1 == 0 && s.Factor2 == 0 }

type Fuse struct {
	Level        int
	Computations []string
}

// Tile splits len(Levels) consecutive levels; Levels and Factors have the
// same length, between 1 and 3.
type Tile struct {
	Levels       []int
	Factors      []int
	Computations []string
}

// Dims returns the tiling dimensionality.
func (t Tile) Dims() int { return len(t.Levels) }

func (Noop) Kind() Kind        { return KindNoop }
func (Parallelize) Kind() Kind { return KindParallelize }
func (Unroll) Kind() Kind      { return KindUnroll }
func (Interchange) Kind() Kind { return KindInterchange }
func (Reverse) Kind() Kind     { return KindReverse }
func (Skew) Kind() Kind        { return KindSkew }
func (Fuse) Kind() Kind        { return KindFuse }
func (Tile) Kind() Kind        { return KindTile }

func (Noop) Comps() []string          { return nil }
func (a Parallelize) Comps() []string { return a.Computations }
func (a Unroll) Comps() []string      { return a.Computations }
func (a Interchange) Comps() []string { return a.Computations }
func (a Reverse) Comps() []string     { return a.Computations }
func (a Skew) Comps() []string        { return a.Computations }
func (a Fuse) Comps() []string        { return a.Computations }
func (a Tile) Comps() []string        { return a.Computations }

func (Noop) sealed()        {}
func (Parallelize) sealed() {}
func (Unroll) sealed()      {}
func (Interchange) sealed() {}
func (Reverse) sealed()     {}
func (Skew) sealed()        {}
func (Fuse) sealed()        {}
func (Tile) sealed()        {}

func (Noop) String() string { return "" }

func (a Parallelize) String() string {
	return fmt.Sprintf("P(L%d,%s)", a.Level, compsList(a.Computations))
}

func (a Unroll) String() string {
	return fmt.Sprintf("U(L%d,%d,%s)", a.Level, a.Factor, compsList(a.Computations))
}

func (a Interchange) String() string {
	return fmt.Sprintf("I(L%d,L%d,%s)", a.Level1, a.Level2, compsList(a.Computations))
}

func (a Reverse) String() string {
	return fmt.Sprintf("R(L%d,%s)", a.Level, compsList(a.Computations))
}

func (a Skew) String() string {
	return fmt.Sprintf("S(L%d,L%d,%d,%d,%s)", a.Level1, a.Level2, a.Factor1, a.Factor2, compsList(a.Computations))
}

func (a Fuse) String() string {
	return fmt.Sprintf("F(L%d,%s)", a.Level, compsList(a.Computations))
}

func (a Tile) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "T%d(", a.Dims())
	for _, l := range a.Levels {
		fmt.Fprintf(&b, "L%d,", l)
	}
	for _, f := range a.Factors {
		fmt.Fprintf(&b, "%d,", f)
	}
	b.WriteString(compsList(a.Computations))
	b.WriteString(")")
	return b.String()
}

func compsList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "comps=[" + strings.Join(quoted, ",") + "]"
}
