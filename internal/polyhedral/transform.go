package polyhedral

import (
	"fmt"
)

type dimPart int

const (
	partWhole dimPart = iota
	partOuter
	partInner
)

// dim is one loop dimension of a computation schedule. Its value at an
// iteration x is sign*part(expr(x)) + offset, where part selects the whole
// value, the tile index or the intra-tile index.
type dim struct {
	expr   Affine
	part   dimPart
	tile   int
	sign   int
	offset int
	group  int

	parallel bool
	unroll   int
}

func (d dim) value(x []int) int {
	e := d.expr.Eval(x)
	switch d.part {
	case partOuter:
		e = floorDiv(e, d.tile)
	case partInner:
		e = floorMod(e, d.tile)
	}
	return d.sign*e + d.offset
}

func (d dim) clone() dim {
	d.expr = d.expr.clone()
	return d
}

func cloneDims(ds []dim) []dim {
	out := make([]dim, len(ds))
	for i, d := range ds {
		out[i] = d.clone()
	}
	return out
}

// tileInfo records the most recent tiling of a computation.
type tileInfo struct {
	level int
	dims  int
}

// SkewFactors is a pair of skewing coefficients.
type SkewFactors struct {
	F1 int
	F2 int
}

// Shift is a per-level offset applied to a computation before fusion.
type Shift struct {
	Level  int
	Amount int
}

func (c *Computation) checkLevel(levels ...int) error {
	for _, l := range levels {
		if l < 0 || l >= len(c.dims) {
			return fmt.Errorf("%w: %s has %d levels, got L%d", ErrInvalidLevel, c.name, len(c.dims), l)
		}
	}
	return nil
}

// TagParallelLevel marks a loop level of comp for parallel execution.
func (p *Program) TagParallelLevel(comp string, level int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(level); err != nil {
		return err
	}
	c.dims[level].parallel = true
	return nil
}

// Unroll marks a loop level of comp for unrolling by factor.
func (p *Program) Unroll(comp string, level, factor int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(level); err != nil {
		return err
	}
	if factor < 1 {
		return fmt.Errorf("%w: unroll factor %d", ErrUnsupported, factor)
	}
	c.dims[level].unroll = factor
	return nil
}

// Interchange swaps two loop levels of comp.
func (p *Program) Interchange(comp string, l1, l2 int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(l1, l2); err != nil {
		return err
	}
	c.dims[l1], c.dims[l2] = c.dims[l2], c.dims[l1]
	return nil
}

// Reverse inverts the iteration order of a loop level of comp.
func (p *Program) Reverse(comp string, level int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(level); err != nil {
		return err
	}
	d := &c.dims[level]
	if d.part == partWhole {
		d.expr = d.expr.scale(-1)
		return nil
	}
	d.sign = -d.sign
	d.offset = -d.offset
	return nil
}

// Shift offsets a loop level of comp by amount.
func (p *Program) Shift(comp string, level, amount int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(level); err != nil {
		return err
	}
	d := &c.dims[level]
	if d.part == partWhole {
		d.expr.Const += amount
		return nil
	}
	d.offset += amount
	return nil
}

// Skew replaces loop levels l1 and l2 of comp with f1*l1 + f2*l2 and a
// unimodular completion of it.
func (p *Program) Skew(comp string, l1, l2, f1, f2 int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	if err := c.checkLevel(l1, l2); err != nil {
		return err
	}
	if l1 == l2 {
		return fmt.Errorf("%w: skew needs two distinct levels", ErrUnsupported)
	}
	d1, d2 := c.dims[l1], c.dims[l2]
	if d1.part != partWhole || d2.part != partWhole {
		return fmt.Errorf("%w: skewing tiled levels", ErrUnsupported)
	}
	if gcd(f1, f2) != 1 {
		return fmt.Errorf("%w: skew factors (%d, %d) are not coprime", ErrUnsupported, f1, f2)
	}

	g, s := skewCompletion(f1, f2)
	c.dims[l1] = dim{expr: d1.expr.scale(f1).add(d2.expr.scale(f2)), sign: 1, parallel: d1.parallel, unroll: d1.unroll}
	c.dims[l2] = dim{expr: d1.expr.scale(g).add(d2.expr.scale(s)), sign: 1, parallel: d2.parallel, unroll: d2.unroll}
	return nil
}

// skewCompletion returns (g, s) with a*s - b*g = 1, minimising |g| + |s-1|.
func skewCompletion(a, b int) (int, int) {
	x, y := extGCD(a, b)
	// a*x + b*y = 1, so s = x, g = -y; general solution shifts by (a, b).
	s0, g0 := x, -y
	bestS, bestG := s0, g0
	best := abs(g0) + abs(s0-1)
	for t := -64; t <= 64; t++ {
		s, g := s0+t*b, g0+t*a
		score := abs(g) + abs(s-1)
		if score < best || score == best && abs(g) < abs(bestG) {
			best, bestS, bestG = score, s, g
		}
	}
	return bestG, bestS
}

func extGCD(a, b int) (int, int) {
	oldR, r := a, b
	oldS, s := 1, 0
	oldT, t := 0, 1
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
		oldT, t = t, oldT-q*t
	}
	if oldR < 0 {
		oldS, oldT = -oldS, -oldT
	}
	return oldS, oldT
}

// Tile splits len(levels) consecutive loop levels of comp into tile and
// intra-tile loops.
func (p *Program) Tile(comp string, levels, factors []int) error {
	c, err := p.find(comp)
	if err != nil {
		return err
	}
	m := len(levels)
	if m == 0 || m != len(factors) {
		return fmt.Errorf("%w: tiling needs one factor per level", ErrUnsupported)
	}
	if err := c.checkLevel(levels...); err != nil {
		return err
	}
	l := levels[0]
	for i, lv := range levels {
		if lv != l+i {
			return fmt.Errorf("%w: tiled levels must be consecutive", ErrUnsupported)
		}
		if factors[i] < 1 {
			return fmt.Errorf("%w: tile factor %d", ErrUnsupported, factors[i])
		}
		if c.dims[lv].part != partWhole {
			return fmt.Errorf("%w: level L%d is already tiled", ErrUnsupported, lv)
		}
	}

	outer := make([]dim, m)
	inner := make([]dim, m)
	for i := 0; i < m; i++ {
		p.nextGroup++
		d := c.dims[l+i]
		outer[i] = dim{expr: d.expr.clone(), part: partOuter, tile: factors[i], sign: 1, group: p.nextGroup}
		inner[i] = dim{expr: d.expr.clone(), part: partInner, tile: factors[i], sign: 1, group: p.nextGroup}
	}

	dims := make([]dim, 0, len(c.dims)+m)
	dims = append(dims, c.dims[:l]...)
	dims = append(dims, outer...)
	dims = append(dims, inner...)
	dims = append(dims, c.dims[l+m:]...)
	c.dims = dims

	beta := make([]int, 0, len(c.beta)+m)
	beta = append(beta, c.beta[:l+m]...)
	beta = append(beta, make([]int, m)...)
	beta = append(beta, c.beta[l+m:]...)
	c.beta = beta

	c.lastTile = tileInfo{level: l, dims: m}
	return nil
}

// FuseAfterTiling places comps, in order, inside the tile loops of the
// first computation's most recent tiling.
func (p *Program) FuseAfterTiling(comps []string, dims int) error {
	cs, err := p.findAll(comps)
	if err != nil {
		return err
	}
	if len(cs) < 2 {
		return nil
	}
	head := cs[0]
	if head.lastTile.dims == 0 {
		return fmt.Errorf("%w: %s has not been tiled", ErrUnsupported, head.name)
	}
	depth := head.lastTile.level + dims
	if dims < 1 || depth > len(head.dims) {
		return fmt.Errorf("%w: cannot fuse %d tile levels of %s", ErrUnsupported, dims, head.name)
	}
	for i, c := range cs {
		if len(c.dims) < depth {
			return fmt.Errorf("%w: %s has fewer than %d levels", ErrInvalidLevel, c.name, depth)
		}
		copy(c.beta[:depth], head.beta[:depth])
		c.beta[depth] = i
	}
	return nil
}

// FuseSchedGraph moves second into the loop nest of first, sharing loops
// 0..level and ordered right after first.
func (p *Program) FuseSchedGraph(first, second string, level int) error {
	a, err := p.find(first)
	if err != nil {
		return err
	}
	b, err := p.find(second)
	if err != nil {
		return err
	}
	if a == b {
		return fmt.Errorf("%w: cannot fuse %s with itself", ErrUnsupported, first)
	}
	if err := a.checkLevel(level); err != nil {
		return err
	}
	if err := b.checkLevel(level); err != nil {
		return err
	}

	slot := a.beta[level+1] + 1
	for _, c := range p.comps {
		if c == a || c == b || len(c.beta) <= level+1 {
			continue
		}
		if equalInts(c.beta[:level+1], a.beta[:level+1]) && c.beta[level+1] >= slot {
			c.beta[level+1]++
		}
	}

	copy(b.beta[:level+1], a.beta[:level+1])
	b.beta[level+1] = slot
	for k := level + 2; k < len(b.beta); k++ {
		b.beta[k] = 0
	}
	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
