package polyhedral

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// instance is one execution of a computation.
type instance struct {
	comp *Computation
	x    []int
}

// dependence orders two instances touching the same buffer element, at
// least one of them writing it. src precedes dst in the original program.
type dependence struct {
	src *instance
	dst *instance
}

type analysis struct {
	instances []*instance
	deps      []dependence
}

// PrepareLegalityChecks takes the current schedule as the reference order
// that legality checks compare against. Once dependences have been
// analysed the reference is fixed and the call does nothing.
func (p *Program) PrepareLegalityChecks() {
	if p.analysis != nil {
		return
	}
	for _, c := range p.comps {
		c.origDims = cloneDims(c.dims)
		c.origBeta = append([]int(nil), c.beta...)
	}
}

// PerformFullDependencyAnalysis computes the dependences of the original
// program over the sampled domain. Repeated calls reuse the first result.
func (p *Program) PerformFullDependencyAnalysis() error {
	if p.analysis != nil {
		return nil
	}
	a, err := p.analyse()
	if err != nil {
		return err
	}
	p.analysis = a
	return nil
}

func (p *Program) deps() ([]dependence, error) {
	if err := p.PerformFullDependencyAnalysis(); err != nil {
		return nil, err
	}
	return p.analysis.deps, nil
}

// sampleRange returns the iterator range truncated for analysis.
func (p *Program) sampleRange(idx int) (int, int) {
	it := p.iters[idx]
	hi := it.Hi
	if hi-it.Lo > p.opts.SampleExtent {
		hi = it.Lo + p.opts.SampleExtent
	}
	return it.Lo, hi
}

func (p *Program) analyse() (*analysis, error) {
	n := len(p.iters)
	a := &analysis{}

	for _, c := range p.comps {
		x := make([]int, n)
		for _, v := range c.vars {
			x[v], _ = p.sampleRange(v)
		}
		for {
			a.instances = append(a.instances, &instance{comp: c, x: append([]int(nil), x...)})
			if !p.advance(c, x) {
				break
			}
		}
	}

	sort.SliceStable(a.instances, func(i, j int) bool {
		return lexCompare(originalTime(a.instances[i]), originalTime(a.instances[j])) < 0
	})

	type touch struct {
		inst  *instance
		write bool
	}
	byLocation := map[string][]touch{}
	var order []string
	record := func(in *instance, acc Access, write bool) error {
		key, err := p.location(acc, in.x)
		if err != nil {
			return fmt.Errorf("%s%v: %w", in.comp.name, in.x, err)
		}
		if _, seen := byLocation[key]; !seen {
			order = append(order, key)
		}
		byLocation[key] = append(byLocation[key], touch{inst: in, write: write})
		return nil
	}

	for _, in := range a.instances {
		for _, r := range in.comp.reads {
			if err := record(in, r, false); err != nil {
				return nil, err
			}
		}
		if err := record(in, in.comp.store, true); err != nil {
			return nil, err
		}
	}

	type pair struct{ src, dst *instance }
	seen := map[pair]bool{}
	for _, key := range order {
		ts := byLocation[key]
		for i := range ts {
			for j := i + 1; j < len(ts); j++ {
				if !ts[i].write && !ts[j].write {
					continue
				}
				if ts[i].inst == ts[j].inst {
					continue
				}
				pr := pair{ts[i].inst, ts[j].inst}
				if seen[pr] {
					continue
				}
				seen[pr] = true
				a.deps = append(a.deps, dependence{src: pr.src, dst: pr.dst})
			}
		}
	}

	return a, nil
}

// advance steps x to the next point of c's sampled domain, innermost
// iterator fastest.
func (p *Program) advance(c *Computation, x []int) bool {
	for k := len(c.vars) - 1; k >= 0; k-- {
		v := c.vars[k]
		lo, hi := p.sampleRange(v)
		x[v]++
		if x[v] < hi {
			return true
		}
		x[v] = lo
	}
	return false
}

func (p *Program) location(acc Access, x []int) (string, error) {
	buf := p.buffers[acc.Buffer]
	var b strings.Builder
	b.WriteString(buf.Name)
	for i, idx := range acc.Index {
		v := idx.Eval(x)
		if v < 0 || v >= buf.Dims[i] {
			return "", fmt.Errorf("access %s index %d out of bounds (%d)", buf.Name, i, v)
		}
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(']')
	}
	return b.String(), nil
}

func originalTime(in *instance) []int {
	return timeVector(in.comp.origDims, in.comp.origBeta, in.x)
}

func currentTime(in *instance) []int {
	return timeVector(in.comp.dims, in.comp.beta, in.x)
}

// timeVector interleaves static ordering values with loop values:
// [b0, d0, b1, d1, ..., b(n-1), d(n-1), bn].
func timeVector(dims []dim, beta []int, x []int) []int {
	t := make([]int, 0, 2*len(dims)+1)
	for k, d := range dims {
		t = append(t, beta[k], d.value(x))
	}
	return append(t, beta[len(dims)])
}

func lexCompare(a, b []int) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// firstDifference returns the first index where a and b differ, or -1.
func firstDifference(a, b []int) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return -1
}

// CheckLegality reports whether the current schedule preserves every
// dependence of the original program.
func (p *Program) CheckLegality() bool {
	deps, err := p.deps()
	if err != nil {
		return false
	}
	for _, d := range deps {
		if lexCompare(currentTime(d.src), currentTime(d.dst)) >= 0 {
			return false
		}
	}
	return true
}

// LoopParallelizationIsLegal reports whether no dependence among comps is
// carried by loop level.
func (p *Program) LoopParallelizationIsLegal(level int, comps []string) bool {
	cs, err := p.findAll(comps)
	if err != nil {
		return false
	}
	for _, c := range cs {
		if c.checkLevel(level) != nil {
			return false
		}
	}
	deps, err := p.deps()
	if err != nil {
		return false
	}
	in := membership(cs)
	for _, d := range deps {
		if !in[d.src.comp] || !in[d.dst.comp] {
			continue
		}
		if firstDifference(currentTime(d.src), currentTime(d.dst)) == 2*level+1 {
			return false
		}
	}
	return true
}

// LoopUnrollingIsLegal reports whether level has bounds independent of the
// enclosing loops for every computation in comps.
func (p *Program) LoopUnrollingIsLegal(level int, comps []string) bool {
	cs, err := p.findAll(comps)
	if err != nil {
		return false
	}
	for _, c := range cs {
		if c.checkLevel(level) != nil {
			return false
		}
		d := c.dims[level]
		for k := 0; k < level; k++ {
			outer := c.dims[k]
			if d.group != 0 && outer.group == d.group {
				continue
			}
			if shareSupport(d.expr, outer.expr) {
				return false
			}
		}
	}
	return true
}

func shareSupport(a, b Affine) bool {
	for i := range a.Coeffs {
		if a.Coeffs[i] != 0 && b.Coeffs[i] != 0 {
			return true
		}
	}
	return false
}

func membership(cs []*Computation) map[*Computation]bool {
	m := make(map[*Computation]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}
