// Package polyhedral is the loop-nest representation schedules are applied to.
//
// A Program is a set of named computations, each embedded in a rectangular
// iteration domain and given a schedule: a list of loop dimensions (affine
// in the original iterators, optionally split by tiling) interleaved with
// static ordering dimensions that place computations relative to each other.
// Dependences are computed exactly on a sampled sub-domain and every
// legality question is answered against them.
//
// A Program is a per-request session. It is not safe for concurrent use.
package polyhedral

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownComputation is returned when a name matches no computation.
	ErrUnknownComputation = errors.New("unknown computation")

	// ErrAmbiguousComputation is returned when a name matches more than one computation.
	ErrAmbiguousComputation = errors.New("ambiguous computation")

	// ErrInvalidLevel is returned for loop levels outside a computation's nest.
	ErrInvalidLevel = errors.New("invalid loop level")

	// ErrUnsupported is returned for transformations the model cannot express.
	ErrUnsupported = errors.New("unsupported transformation")

	// ErrInvalidDefinition is returned by New for malformed program definitions.
	ErrInvalidDefinition = errors.New("invalid program definition")
)

// DefaultSampleExtent is the number of values per iterator used for
// dependence analysis when Options.SampleExtent is zero.
const DefaultSampleExtent = 6

// Options tunes analysis of a program session.
type Options struct {
	// SampleExtent bounds every iterator range to this many values during
	// dependence analysis.
	SampleExtent int
}

// Iterator is a named loop variable ranging over [Lo, Hi).
type Iterator struct {
	Name string
	Lo   int
	Hi   int
}

// Buffer roles.
const (
	RoleInput     = "input"
	RoleOutput    = "output"
	RoleTemporary = "temporary"
)

// Buffer is a dense multi-dimensional array.
type Buffer struct {
	Name string
	Dims []int
	Type string
	Role string
}

// ComputationDef declares one computation of a program.
type ComputationDef struct {
	Name      string
	Iterators []string
	// Store is the written element, e.g. "out[i][j]".
	Store string
	// Expr is the right-hand side in C syntax; buffer accesses use
	// bracket indexing with affine indices.
	Expr string
	// Level is the deepest loop shared with the previous computation;
	// nil or -1 places the computation in a new root nest.
	Level *int
}

// Definition is the static description of a program.
type Definition struct {
	Name         string
	Iterators    []Iterator
	Buffers      []Buffer
	Computations []ComputationDef
}

// Access is one buffer element reference.
type Access struct {
	Buffer int
	Index  []Affine
}

// Computation is a named unit of work and its current schedule.
type Computation struct {
	name  string
	vars  []int
	store Access
	reads []Access
	expr  string

	dims []dim
	beta []int

	origDims []dim
	origBeta []int

	lastTile tileInfo
}

// Name returns the computation name.
func (c *Computation) Name() string { return c.name }

// Depth returns the number of loop levels in the current schedule.
func (c *Computation) Depth() int { return len(c.dims) }

// Program is a mutable schedule session over a Definition.
type Program struct {
	name    string
	iters   []Iterator
	buffers []Buffer
	comps   []*Computation
	opts    Options

	analysis  *analysis
	nextGroup int
}

var (
	identRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	loopVarRe  = regexp.MustCompile(`^c[0-9]+$`)
	elemTypeOf = map[string]string{
		"":        "double",
		"float64": "double",
		"float32": "float",
		"int32":   "int32_t",
		"int64":   "int64_t",
	}
)

// New builds a fresh program session from def.
func New(def Definition, opts Options) (*Program, error) {
	if opts.SampleExtent <= 0 {
		opts.SampleExtent = DefaultSampleExtent
	}

	if !identRe.MatchString(def.Name) {
		return nil, fmt.Errorf("%w: invalid program name %q", ErrInvalidDefinition, def.Name)
	}

	p := &Program{
		name:    def.Name,
		iters:   def.Iterators,
		buffers: def.Buffers,
		opts:    opts,
	}

	vars := make(map[string]int, len(def.Iterators))
	for i, it := range def.Iterators {
		if !identRe.MatchString(it.Name) || loopVarRe.MatchString(it.Name) {
			return nil, fmt.Errorf("%w: invalid iterator name %q", ErrInvalidDefinition, it.Name)
		}
		if _, dup := vars[it.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate iterator %q", ErrInvalidDefinition, it.Name)
		}
		if it.Lo >= it.Hi {
			return nil, fmt.Errorf("%w: empty range for iterator %q", ErrInvalidDefinition, it.Name)
		}
		vars[it.Name] = i
	}

	bufs := make(map[string]int, len(def.Buffers))
	for i, b := range def.Buffers {
		if !identRe.MatchString(b.Name) || strings.HasPrefix(b.Name, "p_") {
			return nil, fmt.Errorf("%w: invalid buffer name %q", ErrInvalidDefinition, b.Name)
		}
		if _, dup := bufs[b.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate buffer %q", ErrInvalidDefinition, b.Name)
		}
		if _, clash := vars[b.Name]; clash {
			return nil, fmt.Errorf("%w: buffer %q shadows an iterator", ErrInvalidDefinition, b.Name)
		}
		if len(b.Dims) == 0 {
			return nil, fmt.Errorf("%w: buffer %q has no dimensions", ErrInvalidDefinition, b.Name)
		}
		for _, d := range b.Dims {
			if d <= 0 {
				return nil, fmt.Errorf("%w: buffer %q has a non-positive extent", ErrInvalidDefinition, b.Name)
			}
		}
		if _, ok := elemTypeOf[b.Type]; !ok {
			return nil, fmt.Errorf("%w: buffer %q has unsupported type %q", ErrInvalidDefinition, b.Name, b.Type)
		}
		switch b.Role {
		case RoleInput, RoleOutput, RoleTemporary:
		default:
			return nil, fmt.Errorf("%w: buffer %q has unknown role %q", ErrInvalidDefinition, b.Name, b.Role)
		}
		bufs[b.Name] = i
	}

	for _, cd := range def.Computations {
		c, err := p.newComputation(cd, vars, bufs)
		if err != nil {
			return nil, err
		}
		if err := p.place(c, cd.Level); err != nil {
			return nil, err
		}
		p.comps = append(p.comps, c)
	}

	p.PrepareLegalityChecks()

	return p, nil
}

func (p *Program) newComputation(cd ComputationDef, vars, bufs map[string]int) (*Computation, error) {
	if !identRe.MatchString(cd.Name) {
		return nil, fmt.Errorf("%w: invalid computation name %q", ErrInvalidDefinition, cd.Name)
	}

	n := len(p.iters)
	local := make(map[string]int, len(cd.Iterators))
	c := &Computation{
		name: cd.Name,
		expr: cd.Expr,
	}

	for _, name := range cd.Iterators {
		idx, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("%w: computation %s uses unknown iterator %q", ErrInvalidDefinition, cd.Name, name)
		}
		if _, dup := local[name]; dup {
			return nil, fmt.Errorf("%w: computation %s repeats iterator %q", ErrInvalidDefinition, cd.Name, name)
		}
		local[name] = idx
		c.vars = append(c.vars, idx)
		c.dims = append(c.dims, dim{expr: varAffine(n, idx), sign: 1})
	}

	stores, err := scanAccesses(cd.Store, p.buffers, bufs, local, n)
	if err != nil {
		return nil, fmt.Errorf("%w: computation %s store: %v", ErrInvalidDefinition, cd.Name, err)
	}
	if len(stores) != 1 {
		return nil, fmt.Errorf("%w: computation %s must store to exactly one buffer element", ErrInvalidDefinition, cd.Name)
	}
	c.store = stores[0]

	if strings.TrimSpace(cd.Expr) == "" {
		return nil, fmt.Errorf("%w: computation %s has no expression", ErrInvalidDefinition, cd.Name)
	}
	c.reads, err = scanAccesses(cd.Expr, p.buffers, bufs, local, n)
	if err != nil {
		return nil, fmt.Errorf("%w: computation %s expression: %v", ErrInvalidDefinition, cd.Name, err)
	}

	return c, nil
}

// place assigns the static ordering of c after the previous computation.
func (p *Program) place(c *Computation, level *int) error {
	c.beta = make([]int, len(c.dims)+1)
	if len(p.comps) == 0 {
		return nil
	}

	prev := p.comps[len(p.comps)-1]
	l := -1
	if level != nil {
		l = *level
	}
	if l < -1 || l >= len(c.dims) || l >= len(prev.dims) {
		return fmt.Errorf("%w: computation %s cannot share level %d with %s", ErrInvalidDefinition, c.name, l, prev.name)
	}

	for k := 0; k <= l; k++ {
		c.beta[k] = prev.beta[k]
	}
	c.beta[l+1] = prev.beta[l+1] + 1

	return nil
}

// scanAccesses finds every "buf[..][..]" reference to a known buffer in src.
func scanAccesses(src string, buffers []Buffer, bufs, vars map[string]int, n int) ([]Access, error) {
	var out []Access
	for i := 0; i < len(src); {
		if !isIdentByte(src[i]) || (src[i] >= '0' && src[i] <= '9') {
			i++
			continue
		}
		start := i
		for i < len(src) && isIdentByte(src[i]) {
			i++
		}
		// skip the tail of numeric literals such as 1e5
		if start > 0 && (src[start-1] >= '0' && src[start-1] <= '9' || src[start-1] == '.') {
			continue
		}
		name := src[start:i]
		bi, ok := bufs[name]
		if !ok {
			continue
		}

		acc := Access{Buffer: bi}
		for {
			j := i
			for j < len(src) && src[j] == ' ' {
				j++
			}
			if j >= len(src) || src[j] != '[' {
				break
			}
			end := strings.IndexByte(src[j:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated index for %s", name)
			}
			a, err := ParseAffine(src[j+1:j+end], vars, n)
			if err != nil {
				return nil, err
			}
			acc.Index = append(acc.Index, a)
			i = j + end + 1
		}

		if len(acc.Index) != len(buffers[bi].Dims) {
			return nil, fmt.Errorf("buffer %s has rank %d, accessed with %d indices", name, len(buffers[bi].Dims), len(acc.Index))
		}
		out = append(out, acc)
	}
	return out, nil
}

// Name returns the program name.
func (p *Program) Name() string { return p.name }

// Computations returns the computations in declaration order.
func (p *Program) Computations() []*Computation {
	return append([]*Computation(nil), p.comps...)
}

// CountComputations returns how many computations are called name.
func (p *Program) CountComputations(name string) int {
	n := 0
	for _, c := range p.comps {
		if c.name == name {
			n++
		}
	}
	return n
}

func (p *Program) find(name string) (*Computation, error) {
	var found *Computation
	for _, c := range p.comps {
		if c.name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousComputation, name)
		}
		found = c
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComputation, name)
	}
	return found, nil
}

func (p *Program) findAll(names []string) ([]*Computation, error) {
	out := make([]*Computation, 0, len(names))
	for _, n := range names {
		c, err := p.find(n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (p *Program) iterNames() []string {
	names := make([]string, len(p.iters))
	for i, it := range p.iters {
		names[i] = it.Name
	}
	return names
}
