package asm

import "fmt"

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokWord          // opcodes, registers, numbers, special registers
	tokComma
	tokLBracket
	tokRBracket
	tokPlus
	tokMinus
	tokBang
	tokAt
	tokSemicolon
)

var tokenNames = [...]string{
	tokEOF:       "end of line",
	tokWord:      "word",
	tokComma:     "','",
	tokLBracket:  "'['",
	tokRBracket:  "']'",
	tokPlus:      "'+'",
	tokMinus:     "'-'",
	tokBang:      "'!'",
	tokAt:        "'@'",
	tokSemicolon: "';'",
}

func (k tokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("token(%d)", k)
}

type token struct {
	kind tokenKind
	text string
	col  int // 1-based column in the line
}

var punctuation = map[byte]tokenKind{
	',': tokComma,
	'[': tokLBracket,
	']': tokRBracket,
	'+': tokPlus,
	'-': tokMinus,
	'!': tokBang,
	'@': tokAt,
	';': tokSemicolon,
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lexError reports a byte that cannot start any token.
type lexError struct {
	col int
	c   byte
}

func (e *lexError) Error() string {
	return fmt.Sprintf("unexpected character %q", e.c)
}

// lex splits src, which starts at column base of its line, into tokens. The
// returned slice always ends with a tokEOF token.
func lex(src string, base int) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isWordByte(c):
			start := i
			for i < len(src) && isWordByte(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: src[start:i], col: base + start})
		default:
			kind, ok := punctuation[c]
			if !ok {
				return nil, &lexError{col: base + i, c: c}
			}
			toks = append(toks, token{kind: kind, text: string(c), col: base + i})
			i++
		}
	}
	return append(toks, token{kind: tokEOF, col: base + len(src)}), nil
}
