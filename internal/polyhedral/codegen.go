package polyhedral

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// EmitC writes a C translation unit defining one function named after the
// program. Its parameters are the input and output buffers, in declaration
// order, as flat pointers.
func (p *Program) EmitC(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "/* generated by polysched for %s */\n", p.name)
	bw.WriteString("#include <stdint.h>\n#include <stdlib.h>\n#include <math.h>\n\n")

	var params []string
	for _, b := range p.buffers {
		if b.Role == RoleTemporary {
			continue
		}
		params = append(params, fmt.Sprintf("%s *p_%s", elemTypeOf[b.Type], b.Name))
	}
	fmt.Fprintf(bw, "void %s(%s)\n{\n", p.name, strings.Join(params, ", "))

	for _, b := range p.buffers {
		t := elemTypeOf[b.Type]
		var ext strings.Builder
		for _, d := range b.Dims[1:] {
			fmt.Fprintf(&ext, "[%d]", d)
		}
		src := "p_" + b.Name
		if b.Role == RoleTemporary {
			total := 1
			for _, d := range b.Dims {
				total *= d
			}
			src = fmt.Sprintf("malloc(sizeof(%s) * %d)", t, total)
		}
		fmt.Fprintf(bw, "  %s (*%s)%s = (%s (*)%s)%s;\n", t, b.Name, ext.String(), t, ext.String(), src)
	}
	bw.WriteString("\n")

	if err := p.emitNodes(bw, p.loopTree(), 1); err != nil {
		return err
	}

	for _, b := range p.buffers {
		if b.Role == RoleTemporary {
			fmt.Fprintf(bw, "  free(%s);\n", b.Name)
		}
	}
	bw.WriteString("}\n")

	return bw.Flush()
}

func (p *Program) emitNodes(w *bufio.Writer, nodes []*loopNode, indent int) error {
	pad := strings.Repeat("  ", indent)
	for _, n := range nodes {
		if n.stmt != nil {
			if err := p.emitStatement(w, n.stmt, pad); err != nil {
				return err
			}
			continue
		}
		switch {
		case n.parallel:
			fmt.Fprintf(w, "%s#pragma omp parallel for\n", pad)
		case n.unroll > 1:
			fmt.Fprintf(w, "%s#pragma GCC unroll %d\n", pad, n.unroll)
		}
		fmt.Fprintf(w, "%sfor (long c%d = %d; c%d <= %d; c%d++) {\n", pad, n.level, n.lo, n.level, n.hi, n.level)
		if err := p.emitNodes(w, n.children, indent+1); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s}\n", pad)
	}
	return nil
}

// emitStatement recovers the original iterators of c from the loop
// variables and guards the assignment with the iteration domain.
func (p *Program) emitStatement(w *bufio.Writer, c *Computation, pad string) error {
	rows, values, err := c.baseRows()
	if err != nil {
		return err
	}
	nv := len(c.vars)
	m := make([][]int, nv)
	for r, row := range rows {
		m[r] = make([]int, nv)
		for j, v := range c.vars {
			m[r][j] = row.Coeffs[v]
		}
	}
	inv, err := intInverse(m)
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	fmt.Fprintf(w, "%s{\n", pad)
	names := p.iterNames()
	var guards []string
	for j, v := range c.vars {
		var terms []string
		for r := range rows {
			k := inv[j][r]
			if k == 0 {
				continue
			}
			terms = append(terms, fmt.Sprintf("%d*(%s - (%d))", k, values[r], rows[r].Const))
		}
		rhs := "0"
		if len(terms) > 0 {
			rhs = strings.Join(terms, " + ")
		}
		name := names[v]
		fmt.Fprintf(w, "%s  const long %s = %s;\n", pad, name, rhs)
		guards = append(guards, fmt.Sprintf("%s >= %d && %s < %d", name, p.iters[v].Lo, name, p.iters[v].Hi))
	}
	if len(guards) == 0 {
		guards = append(guards, "1")
	}

	fmt.Fprintf(w, "%s  if (%s)\n", pad, strings.Join(guards, " && "))
	fmt.Fprintf(w, "%s    %s = (%s);\n", pad, p.accessString(c.store), c.expr)
	fmt.Fprintf(w, "%s}\n", pad)
	return nil
}

func (p *Program) accessString(a Access) string {
	names := p.iterNames()
	var b strings.Builder
	b.WriteString(p.buffers[a.Buffer].Name)
	for _, idx := range a.Index {
		b.WriteString("[")
		b.WriteString(idx.Format(names))
		b.WriteString("]")
	}
	return b.String()
}

// baseRows returns one affine row per original iterator together with the
// C expression evaluating it from the loop variables. Tile pairs are
// recombined into a single row.
func (c *Computation) baseRows() ([]Affine, []string, error) {
	var rows []Affine
	var values []string
	undo := func(k int) string {
		d := c.dims[k]
		return fmt.Sprintf("(%d)*(c%d - (%d))", d.sign, k, d.offset)
	}
	for k, d := range c.dims {
		switch d.part {
		case partWhole:
			rows = append(rows, d.expr)
			values = append(values, fmt.Sprintf("c%d", k))
		case partOuter:
			inner := -1
			for j := k + 1; j < len(c.dims); j++ {
				if c.dims[j].part == partInner && c.dims[j].group == d.group {
					inner = j
					break
				}
			}
			if inner < 0 {
				return nil, nil, fmt.Errorf("%w: tile level L%d of %s has no intra-tile level", ErrUnsupported, k, c.name)
			}
			rows = append(rows, d.expr)
			values = append(values, fmt.Sprintf("(%d*%s + %s)", d.tile, undo(k), undo(inner)))
		}
	}
	if len(rows) != len(c.vars) {
		return nil, nil, fmt.Errorf("%w: %s schedule is not invertible", ErrUnsupported, c.name)
	}
	return rows, values, nil
}

func intDet(m [][]int) int {
	n := len(m)
	switch n {
	case 0:
		return 1
	case 1:
		return m[0][0]
	}
	det := 0
	for j := 0; j < n; j++ {
		if m[0][j] == 0 {
			continue
		}
		sign := 1
		if j%2 == 1 {
			sign = -1
		}
		det += sign * m[0][j] * intDet(minor(m, 0, j))
	}
	return det
}

func minor(m [][]int, row, col int) [][]int {
	out := make([][]int, 0, len(m)-1)
	for i, r := range m {
		if i == row {
			continue
		}
		nr := make([]int, 0, len(r)-1)
		nr = append(nr, r[:col]...)
		nr = append(nr, r[col+1:]...)
		out = append(out, nr)
	}
	return out
}

// intInverse inverts a unimodular integer matrix.
func intInverse(m [][]int) ([][]int, error) {
	n := len(m)
	det := intDet(m)
	if det != 1 && det != -1 {
		return nil, fmt.Errorf("%w: schedule matrix has determinant %d", ErrUnsupported, det)
	}
	inv := make([][]int, n)
	for i := range inv {
		inv[i] = make([]int, n)
	}
	if n == 1 {
		inv[0][0] = det
		return inv, nil
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sign := 1
			if (i+j)%2 == 1 {
				sign = -1
			}
			// adjugate is the transposed cofactor matrix
			inv[j][i] = sign * intDet(minor(m, i, j)) * det
		}
	}
	return inv, nil
}

type annotationBuffer struct {
	Name string `json:"name"`
	Dims []int  `json:"dims"`
	Type string `json:"type"`
	Role string `json:"role"`
}

type annotationComputation struct {
	Name       string   `json:"name"`
	Iterators  []string `json:"iterators"`
	Store      string   `json:"store"`
	Expression string   `json:"expression"`
	Schedule   string   `json:"schedule"`
}

type annotationIterator struct {
	Name string `json:"name"`
	Lo   int    `json:"lower_bound"`
	Hi   int    `json:"upper_bound"`
}

type annotationProgram struct {
	Name         string                  `json:"program_name"`
	Iterators    []annotationIterator    `json:"iterators"`
	Buffers      []annotationBuffer      `json:"buffers"`
	Computations []annotationComputation `json:"computations"`
}

// Annotations describes the program structure as JSON.
func (p *Program) Annotations() ([]byte, error) {
	names := p.iterNames()
	out := annotationProgram{Name: p.name}
	for _, it := range p.iters {
		out.Iterators = append(out.Iterators, annotationIterator{Name: it.Name, Lo: it.Lo, Hi: it.Hi})
	}
	for _, b := range p.buffers {
		t := b.Type
		if t == "" {
			t = "float64"
		}
		out.Buffers = append(out.Buffers, annotationBuffer{Name: b.Name, Dims: b.Dims, Type: t, Role: b.Role})
	}
	for _, c := range p.comps {
		iters := make([]string, len(c.vars))
		for i, v := range c.vars {
			iters[i] = names[v]
		}
		sched, err := p.ScheduleString(c.name)
		if err != nil {
			// duplicate names cannot be resolved; describe the original order
			sched = ""
		}
		out.Computations = append(out.Computations, annotationComputation{
			Name:       c.name,
			Iterators:  iters,
			Store:      p.accessString(c.store),
			Expression: c.expr,
			Schedule:   sched,
		})
	}
	return json.Marshal(out)
}
