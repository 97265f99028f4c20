package schedule

import "github.com/Norgate-AV/polysched/internal/polyhedral"

// Program is the mutable program representation actions are applied to.
// *polyhedral.Program implements it.
type Program interface {
	CountComputations(name string) int

	LoopParallelizationIsLegal(level int, comps []string) bool
	LoopUnrollingIsLegal(level int, comps []string) bool

	TagParallelLevel(comp string, level int) error
	Unroll(comp string, level, factor int) error
	Interchange(comp string, l1, l2 int) error
	Reverse(comp string, level int) error
	Skew(comp string, l1, l2, f1, f2 int) error
	Shift(comp string, level, amount int) error
	Tile(comp string, levels, factors []int) error

	SkewingSolver(comps []string, l1, l2 int) (outer, inner []polyhedral.SkewFactors)

	FuseSchedGraph(first, second string, level int) error
	FusionShiftCorrections(first, second string, levels []int) []polyhedral.Shift
	FuseAfterTiling(comps []string, dims int) error
}

var _ Program = (*polyhedral.Program)(nil)
