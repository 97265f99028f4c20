package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates actions in a schedule string.
const Delimiter = "|"

// Schedule is the parsed form of a schedule string.
type Schedule struct {
	Tokens  []string
	Actions []Action
}

// Split splits a schedule string on Delimiter, keeping order and the final
// segment even when it is empty.
func Split(s string) []string {
	return strings.Split(s, Delimiter)
}

// Parse parses every token of s. Nothing is applied, so a malformed token
// anywhere rejects the whole schedule.
func Parse(s string) (*Schedule, error) {
	sched := &Schedule{Tokens: Split(s)}
	for i, tok := range sched.Tokens {
		a, err := ParseAction(tok)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		sched.Actions = append(sched.Actions, a)
	}
	return sched, nil
}

// arity is the number of levels and integer parameters of an action kind.
type arity struct {
	levels int
	ints   int
	signed bool
}

var arities = map[string]arity{
	"P":  {levels: 1},
	"U":  {levels: 1, ints: 1},
	"I":  {levels: 2},
	"R":  {levels: 1},
	"S":  {levels: 2, ints: 2, signed: true},
	"F":  {levels: 1},
	"T1": {levels: 1, ints: 1},
	"T2": {levels: 2, ints: 2},
	"T3": {levels: 3, ints: 3},
}

// ParseAction parses one action token. An empty or blank token is a Noop.
func ParseAction(src string) (Action, error) {
	if strings.TrimSpace(src) == "" {
		return Noop{}, nil
	}

	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}

	head := p.peek()
	if head.kind != tokIdent {
		return nil, p.errorf(head, "expected an action code")
	}
	ar, ok := arities[head.text]
	if !ok {
		if head.text[0] == 'T' {
			return nil, &ParseError{Token: src, Pos: head.pos, Msg: fmt.Sprintf("tiling code %q", head.text), Err: ErrUnsupportedTilingArity}
		}
		return nil, p.errorf(head, "unknown action code %q", head.text)
	}
	p.next()

	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	levels := make([]int, ar.levels)
	for i := range levels {
		if levels[i], err = p.level(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
	}
	ints := make([]int, ar.ints)
	for i := range ints {
		if ints[i], err = p.integer(ar.signed); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
	}
	comps, err := p.comps()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return nil, err
	}

	if !ar.signed {
		for _, v := range ints {
			if v == 0 {
				return nil, &ParseError{Token: src, Pos: head.pos, Msg: "factor must be positive", Err: ErrMalformedAction}
			}
		}
	}

	switch head.text {
	case "P":
		return Parallelize{Level: levels[0], Computations: comps}, nil
	case "U":
		return Unroll{Level: levels[0], Factor: ints[0], Computations: comps}, nil
	case "I":
		return Interchange{Level1: levels[0], Level2: levels[1], Computations: comps}, nil
	case "R":
		return Reverse{Level: levels[0], Computations: comps}, nil
	case "S":
		return Skew{Level1: levels[0], Level2: levels[1], Factor1: ints[0], Factor2: ints[1], Computations: comps}, nil
	case "F":
		return Fuse{Level: levels[0], Computations: comps}, nil
	default:
		return Tile{Levels: levels, Factors: ints, Computations: comps}, nil
	}
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Token: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...), Err: ErrMalformedAction}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, describe(t))
	}
	return t, nil
}

func (p *parser) level() (int, error) {
	t, err := p.expect(tokLevel)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(t.text[1:])
	if err != nil {
		return 0, p.errorf(t, "loop level %q: %v", t.text, err)
	}
	return v, nil
}

func (p *parser) integer(signed bool) (int, error) {
	sign := 1
	if t := p.peek(); signed && (t.kind == tokMinus || t.kind == tokPlus) {
		if t.kind == tokMinus {
			sign = -1
		}
		p.next()
	}
	t, err := p.expect(tokInt)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, p.errorf(t, "integer %q: %v", t.text, err)
	}
	return sign * v, nil
}

// comps parses comps=[name, 'name', ...].
func (p *parser) comps() ([]string, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if t.text != "comps" {
		return nil, p.errorf(t, "expected comps, found %q", t.text)
	}
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	open, err := p.expect(tokLBracket)
	if err != nil {
		return nil, err
	}

	var names []string
	for p.peek().kind != tokRBracket {
		if len(names) > 0 {
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
		t := p.next()
		switch t.kind {
		case tokIdent, tokLevel:
			names = append(names, t.text)
		case tokString:
			name := strings.TrimSpace(t.text)
			if name == "" {
				return nil, p.errorf(t, "empty computation name")
			}
			names = append(names, name)
		default:
			return nil, p.errorf(t, "expected a computation name, found %s", describe(t))
		}
	}
	p.next()

	if len(names) == 0 {
		return nil, p.errorf(open, "empty computation list")
	}
	return names, nil
}

func describe(t token) string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}
