package polyhedral

import (
	"fmt"
	"sort"
	"strings"
)

// loopNode is either a loop over level with children, or a statement.
type loopNode struct {
	level    int
	lo, hi   int
	parallel bool
	unroll   int
	children []*loopNode

	stmt *Computation
}

// loopTree orders the computations into the loop nest implied by their
// current schedules.
func (p *Program) loopTree() []*loopNode {
	return p.buildLevel(p.comps, 0)
}

func (p *Program) buildLevel(comps []*Computation, k int) []*loopNode {
	groups := map[int][]*Computation{}
	var keys []int
	for _, c := range comps {
		b := c.beta[k]
		if _, ok := groups[b]; !ok {
			keys = append(keys, b)
		}
		groups[b] = append(groups[b], c)
	}
	sort.Ints(keys)

	var nodes []*loopNode
	for _, key := range keys {
		var deeper []*Computation
		for _, c := range groups[key] {
			if len(c.dims) == k {
				nodes = append(nodes, &loopNode{stmt: c})
				continue
			}
			deeper = append(deeper, c)
		}
		if len(deeper) == 0 {
			continue
		}

		loop := &loopNode{level: k}
		for i, c := range deeper {
			lo, hi := p.dimRange(c, k)
			if i == 0 || lo < loop.lo {
				loop.lo = lo
			}
			if i == 0 || hi > loop.hi {
				loop.hi = hi
			}
			d := c.dims[k]
			loop.parallel = loop.parallel || d.parallel
			loop.unroll = max(loop.unroll, d.unroll)
		}
		loop.children = p.buildLevel(deeper, k+1)
		nodes = append(nodes, loop)
	}
	return nodes
}

// exprRange bounds an affine form over the full domain of c.
func (p *Program) exprRange(c *Computation, e Affine) (int, int) {
	lo, hi := e.Const, e.Const
	for _, v := range c.vars {
		k := e.Coeffs[v]
		if k == 0 {
			continue
		}
		a, b := k*p.iters[v].Lo, k*(p.iters[v].Hi-1)
		lo += min(a, b)
		hi += max(a, b)
	}
	return lo, hi
}

// dimRange bounds the values taken by level k of c, inclusive.
func (p *Program) dimRange(c *Computation, k int) (int, int) {
	d := c.dims[k]
	lo, hi := p.exprRange(c, d.expr)
	switch d.part {
	case partOuter:
		lo, hi = floorDiv(lo, d.tile), floorDiv(hi, d.tile)
	case partInner:
		lo, hi = 0, d.tile-1
	}
	if d.sign < 0 {
		lo, hi = -hi, -lo
	}
	return lo + d.offset, hi + d.offset
}

// IR renders the loop nest of the current schedule.
func (p *Program) IR() string {
	var b strings.Builder
	var walk func(nodes []*loopNode, indent int)
	walk = func(nodes []*loopNode, indent int) {
		pad := strings.Repeat("  ", indent)
		for _, n := range nodes {
			if n.stmt != nil {
				args := make([]string, len(n.stmt.dims))
				for i := range args {
					args[i] = fmt.Sprintf("c%d", i)
				}
				fmt.Fprintf(&b, "%s%s(%s);\n", pad, n.stmt.name, strings.Join(args, ", "))
				continue
			}
			fmt.Fprintf(&b, "%sfor (c%d = %d; c%d <= %d; c%d += 1)", pad, n.level, n.lo, n.level, n.hi, n.level)
			switch {
			case n.parallel:
				b.WriteString(" // parallel")
			case n.unroll > 1:
				fmt.Fprintf(&b, " // unroll %d", n.unroll)
			}
			b.WriteString("\n")
			walk(n.children, indent+1)
		}
	}
	walk(p.loopTree(), 0)
	return b.String()
}

// ScheduleString describes the current schedule of comp, e.g.
// "{ A[i, j] -> [0, j, 0, i, 0] }".
func (p *Program) ScheduleString(comp string) (string, error) {
	c, err := p.find(comp)
	if err != nil {
		return "", err
	}
	names := p.iterNames()
	vars := make([]string, len(c.vars))
	for i, v := range c.vars {
		vars[i] = names[v]
	}
	parts := make([]string, 0, 2*len(c.dims)+1)
	for k, d := range c.dims {
		parts = append(parts, fmt.Sprint(c.beta[k]), d.format(names))
	}
	parts = append(parts, fmt.Sprint(c.beta[len(c.dims)]))
	return fmt.Sprintf("{ %s[%s] -> [%s] }", c.name, strings.Join(vars, ", "), strings.Join(parts, ", ")), nil
}

func (d dim) format(names []string) string {
	e := d.expr.Format(names)
	switch d.part {
	case partOuter:
		e = fmt.Sprintf("floor((%s)/%d)", e, d.tile)
	case partInner:
		e = fmt.Sprintf("((%s) mod %d)", e, d.tile)
	default:
		return e
	}
	if d.sign < 0 {
		e = "-" + e
	}
	switch {
	case d.offset > 0:
		e = fmt.Sprintf("%s + %d", e, d.offset)
	case d.offset < 0:
		e = fmt.Sprintf("%s - %d", e, -d.offset)
	}
	return e
}
