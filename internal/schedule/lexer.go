package schedule

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokLevel
	tokString
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokEquals
	tokMinus
	tokPlus
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of action",
	tokIdent:    "identifier",
	tokInt:      "integer",
	tokLevel:    "loop level",
	tokString:   "quoted name",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
	tokEquals:   "'='",
	tokMinus:    "'-'",
	tokPlus:     "'+'",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits one action into tokens. Whitespace between tokens is ignored.
func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c):
			start := i
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokInt, text: src[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			text := src[start:i]
			kind := tokIdent
			if len(text) > 1 && text[0] == 'L' && allDigits(text[1:]) {
				kind = tokLevel
			}
			toks = append(toks, token{kind: kind, text: text, pos: start})
		case c == '\'' || c == '"':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &ParseError{Token: src, Pos: i, Msg: "unterminated quoted name", Err: ErrMalformedAction}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		default:
			kind, ok := punctuation[c]
			if !ok {
				return nil, &ParseError{Token: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c), Err: ErrMalformedAction}
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

var punctuation = map[byte]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	'=': tokEquals,
	'-': tokMinus,
	'+': tokPlus,
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return s != ""
}
