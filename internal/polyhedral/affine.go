package polyhedral

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Affine is an integer affine form over the iterators of a program.
// Coeffs is indexed by iterator position in the program.
type Affine struct {
	Coeffs []int
	Const  int
}

func newAffine(n int) Affine {
	return Affine{Coeffs: make([]int, n)}
}

func constAffine(n, c int) Affine {
	a := newAffine(n)
	a.Const = c
	return a
}

func varAffine(n, idx int) Affine {
	a := newAffine(n)
	a.Coeffs[idx] = 1
	return a
}

// Eval evaluates the form at point x.
func (a Affine) Eval(x []int) int {
	v := a.Const
	for i, c := range a.Coeffs {
		if c != 0 {
			v += c * x[i]
		}
	}
	return v
}

// IsConst reports whether the form has no iterator terms.
func (a Affine) IsConst() bool {
	for _, c := range a.Coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// Support returns the iterator positions with a non-zero coefficient.
func (a Affine) Support() []int {
	var s []int
	for i, c := range a.Coeffs {
		if c != 0 {
			s = append(s, i)
		}
	}
	return s
}

func (a Affine) clone() Affine {
	c := Affine{Coeffs: make([]int, len(a.Coeffs)), Const: a.Const}
	copy(c.Coeffs, a.Coeffs)
	return c
}

func (a Affine) add(b Affine) Affine {
	r := a.clone()
	for i, c := range b.Coeffs {
		r.Coeffs[i] += c
	}
	r.Const += b.Const
	return r
}

func (a Affine) scale(k int) Affine {
	r := a.clone()
	for i := range r.Coeffs {
		r.Coeffs[i] *= k
	}
	r.Const *= k
	return r
}

// Format renders the form with the given iterator names, e.g. "i + 2*j - 1".
func (a Affine) Format(names []string) string {
	var b strings.Builder
	for i, c := range a.Coeffs {
		if c == 0 {
			continue
		}
		switch {
		case b.Len() == 0 && c < 0:
			b.WriteString("-")
		case b.Len() > 0 && c < 0:
			b.WriteString(" - ")
		case b.Len() > 0:
			b.WriteString(" + ")
		}
		if abs(c) != 1 {
			b.WriteString(strconv.Itoa(abs(c)))
			b.WriteString("*")
		}
		b.WriteString(names[i])
	}
	switch {
	case b.Len() == 0:
		return strconv.Itoa(a.Const)
	case a.Const > 0:
		b.WriteString(" + " + strconv.Itoa(a.Const))
	case a.Const < 0:
		b.WriteString(" - " + strconv.Itoa(-a.Const))
	}
	return b.String()
}

// ParseAffine parses an affine index expression such as "2*i + j - 1".
// vars maps iterator names to their positions; n is the number of iterators.
func ParseAffine(src string, vars map[string]int, n int) (Affine, error) {
	p := &affineParser{src: src, vars: vars, n: n}
	p.next()
	a, err := p.expr()
	if err != nil {
		return Affine{}, err
	}
	if p.tok != "" {
		return Affine{}, fmt.Errorf("unexpected %q in %q", p.tok, src)
	}
	return a, nil
}

type affineParser struct {
	src  string
	pos  int
	tok  string
	vars map[string]int
	n    int
}

func (p *affineParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	start := p.pos
	r := rune(p.src[p.pos])
	switch {
	case unicode.IsDigit(r):
		for p.pos < len(p.src) && unicode.IsDigit(rune(p.src[p.pos])) {
			p.pos++
		}
	case r == '_' || unicode.IsLetter(r):
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
	default:
		p.pos++
	}
	p.tok = p.src[start:p.pos]
}

func (p *affineParser) expr() (Affine, error) {
	a, err := p.term()
	if err != nil {
		return a, err
	}
	for p.tok == "+" || p.tok == "-" {
		op := p.tok
		p.next()
		b, err := p.term()
		if err != nil {
			return a, err
		}
		if op == "-" {
			b = b.scale(-1)
		}
		a = a.add(b)
	}
	return a, nil
}

func (p *affineParser) term() (Affine, error) {
	a, err := p.factor()
	if err != nil {
		return a, err
	}
	for p.tok == "*" {
		p.next()
		b, err := p.factor()
		if err != nil {
			return a, err
		}
		switch {
		case a.IsConst():
			a = b.scale(a.Const)
		case b.IsConst():
			a = a.scale(b.Const)
		default:
			return a, fmt.Errorf("non-affine product in %q", p.src)
		}
	}
	return a, nil
}

func (p *affineParser) factor() (Affine, error) {
	tok := p.tok
	switch {
	case tok == "":
		return Affine{}, fmt.Errorf("unexpected end of %q", p.src)
	case tok == "-":
		p.next()
		a, err := p.factor()
		return a.scale(-1), err
	case tok == "(":
		p.next()
		a, err := p.expr()
		if err != nil {
			return a, err
		}
		if p.tok != ")" {
			return a, fmt.Errorf("missing ) in %q", p.src)
		}
		p.next()
		return a, nil
	case unicode.IsDigit(rune(tok[0])):
		v, err := strconv.Atoi(tok)
		if err != nil {
			return Affine{}, err
		}
		p.next()
		return constAffine(p.n, v), nil
	case isIdentByte(tok[0]):
		idx, ok := p.vars[tok]
		if !ok {
			return Affine{}, fmt.Errorf("unknown iterator %q in %q", tok, p.src)
		}
		p.next()
		return varAffine(p.n, idx), nil
	}
	return Affine{}, fmt.Errorf("unexpected %q in %q", tok, p.src)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func gcd(a, b int) int {
	a, b = abs(a), abs(b)
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
