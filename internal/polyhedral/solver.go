package polyhedral

const maxSkewFactor = 4

// SkewingSolver searches for skew factors on levels l1 and l2 (l2 == l1+1)
// of comps. outer holds candidates that make the outer loop parallel, inner
// those that make the inner loop parallel, both ordered by increasing
// |f1|+|f2|. Both are nil when no dependence is carried by the band.
func (p *Program) SkewingSolver(comps []string, l1, l2 int) (outer, inner []SkewFactors) {
	if l2 != l1+1 {
		return nil, nil
	}
	cs, err := p.findAll(comps)
	if err != nil {
		return nil, nil
	}
	for _, c := range cs {
		if c.checkLevel(l1, l2) != nil {
			return nil, nil
		}
		if c.dims[l1].part != partWhole || c.dims[l2].part != partWhole {
			return nil, nil
		}
	}
	deps, err := p.deps()
	if err != nil {
		return nil, nil
	}

	// distance triples (d1, dbeta, d2) of dependences living in the band
	type distance struct{ d1, db, d2 int }
	var band []distance
	carried := false
	in := membership(cs)
	i1 := 2*l1 + 1
	for _, d := range deps {
		if !in[d.src.comp] || !in[d.dst.comp] {
			continue
		}
		ts, td := currentTime(d.src), currentTime(d.dst)
		if len(ts) <= i1+2 || len(td) <= i1+2 {
			continue
		}
		if fd := firstDifference(ts, td); fd >= 0 && fd < i1 {
			continue
		}
		dist := distance{td[i1] - ts[i1], td[i1+1] - ts[i1+1], td[i1+2] - ts[i1+2]}
		if dist == (distance{}) {
			continue
		}
		if dist.d1 != 0 || dist.d2 != 0 {
			carried = true
		}
		band = append(band, dist)
	}
	if !carried {
		return nil, nil
	}

	// a < sum keeps |b| = sum-a >= 1, so every pair is visited once
	for sum := 2; sum <= 2*maxSkewFactor; sum++ {
		for a := 1; a < sum && a <= maxSkewFactor; a++ {
			for _, b := range []int{sum - a, -(sum - a)} {
				if abs(b) > maxSkewFactor || gcd(a, b) != 1 {
					continue
				}
				g, s := skewCompletion(a, b)
				legal, outerPar, innerPar := true, true, true
				for _, d := range band {
					n1 := a*d.d1 + b*d.d2
					n2 := g*d.d1 + s*d.d2
					if lexCompare([]int{0, 0, 0}, []int{n1, d.db, n2}) >= 0 {
						legal = false
						break
					}
					if n1 != 0 {
						outerPar = false
					}
					if n1 <= 0 {
						innerPar = false
					}
				}
				if !legal {
					continue
				}
				f := SkewFactors{F1: a, F2: b}
				if outerPar {
					outer = append(outer, f)
				}
				if innerPar {
					inner = append(inner, f)
				}
			}
		}
	}
	return outer, inner
}

// FusionShiftCorrections computes per-level shifts of second that make
// fusing it after first at levels legal. It returns nil when no uniform
// shift exists.
func (p *Program) FusionShiftCorrections(first, second string, levels []int) []Shift {
	a, err := p.find(first)
	if err != nil {
		return nil
	}
	b, err := p.find(second)
	if err != nil {
		return nil
	}
	if a == b {
		return nil
	}
	for _, l := range levels {
		if a.checkLevel(l) != nil || b.checkLevel(l) != nil {
			return nil
		}
	}
	deps, err := p.deps()
	if err != nil {
		return nil
	}

	type pending struct {
		d       dependence
		forward bool
	}
	var open []pending
	for _, d := range deps {
		switch {
		case d.src.comp == a && d.dst.comp == b:
			open = append(open, pending{d, true})
		case d.src.comp == b && d.dst.comp == a:
			open = append(open, pending{d, false})
		}
	}

	shifts := make([]Shift, 0, len(levels))
	for _, l := range levels {
		// delta is dst - src at level l, before shifting second
		var fwd, bwd []int
		for _, o := range open {
			delta := o.d.dst.comp.dims[l].value(o.d.dst.x) - o.d.src.comp.dims[l].value(o.d.src.x)
			if o.forward {
				fwd = append(fwd, delta)
			} else {
				bwd = append(bwd, delta)
			}
		}
		if !uniform(fwd) || !uniform(bwd) {
			return nil
		}

		s := 0
		if len(fwd) > 0 && fwd[0] < 0 {
			s = -fwd[0]
		}
		if len(bwd) > 0 && s > bwd[0] {
			return nil
		}
		shifts = append(shifts, Shift{Level: l, Amount: s})

		var still []pending
		for _, o := range open {
			delta := o.d.dst.comp.dims[l].value(o.d.dst.x) - o.d.src.comp.dims[l].value(o.d.src.x)
			if o.forward {
				delta += s
			} else {
				delta -= s
			}
			if delta == 0 {
				still = append(still, o)
			}
		}
		open = still
	}

	// second runs after first inside the fused body
	for _, o := range open {
		if !o.forward {
			return nil
		}
	}
	return shifts
}

func uniform(xs []int) bool {
	for _, x := range xs[min(1, len(xs)):] {
		if x != xs[0] {
			return false
		}
	}
	return true
}
