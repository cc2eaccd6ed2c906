// Package asm parses the textual assembly notation of sm_75 instructions
// into the same values the binary decoder in package sass produces.
//
// A listing holds one instruction per line:
//
//	WAITMASK:RBAR:WBAR:YIELD:STALL [[@][!]Pn] OPCODE [OPERAND{, OPERAND}] [;]
//
// Blank lines and lines starting with '#' are ignored. Offsets are not part
// of the text; the n-th instruction gets offset 16*n.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gpu-uarch/nvdis/pkg/sass"
)

// SyntaxError describes a line rejected by the parser.
type SyntaxError struct {
	File string
	Line int // 1-based line number in the listing
	Col  int // 1-based column, 0 if unknown
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	file := e.File
	if file == "" {
		file = "<input>"
	}
	return fmt.Sprintf("%s:%d:%d: %s\n\t%s", file, e.Line, e.Col, e.Msg, e.Text)
}

// Unwrap makes every SyntaxError match sass.ErrMalformedText.
func (e *SyntaxError) Unwrap() error {
	return sass.ErrMalformedText
}

// Parse parses a listing. Any malformed line fails the whole listing.
func Parse(src string) ([]sass.Instruction, error) {
	return ParseReader("", strings.NewReader(src))
}

// ParseReader parses the listing read from r. The name is only used in
// error messages.
func ParseReader(name string, r io.Reader) ([]sass.Instruction, error) {
	var insts []sass.Instruction
	scan := bufio.NewScanner(r)
	lineno := 0
	for scan.Scan() {
		lineno++
		text := scan.Text()
		if skipLine(text) {
			continue
		}
		inst, err := parseLine(uint64(len(insts))*sass.InstructionSize, text)
		if err != nil {
			err.File = name
			err.Line = lineno
			return nil, err
		}
		insts = append(insts, inst)
	}
	if err := scan.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return insts, nil
}

// ParseLine parses a single instruction and places it at offset.
func ParseLine(offset uint64, line string) (sass.Instruction, error) {
	inst, err := parseLine(offset, line)
	if err != nil {
		err.Line = 1
		return sass.Instruction{}, err
	}
	return inst, nil
}

func skipLine(text string) bool {
	text = strings.TrimSpace(text)
	return text == "" || strings.HasPrefix(text, "#")
}

// parser holds the state for one line.
type parser struct {
	text string
	toks []token
	pos  int
}

func parseLine(offset uint64, text string) (sass.Instruction, *SyntaxError) {
	p := &parser{text: text}
	inst, err := p.parseInstruction(offset)
	if err != nil {
		return sass.Instruction{}, err
	}
	return inst, nil
}

func (p *parser) errorf(col int, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Col: col, Text: p.text, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, *SyntaxError) {
	t := p.next()
	if t.kind != kind {
		return t, p.unexpected(t, kind.String())
	}
	return t, nil
}

func (p *parser) unexpected(t token, want string) *SyntaxError {
	if t.kind == tokEOF {
		return p.errorf(t.col, "unexpected end of line, expected %s", want)
	}
	return p.errorf(t.col, "unexpected %q, expected %s", t.text, want)
}

func (p *parser) parseInstruction(offset uint64) (sass.Instruction, *SyntaxError) {
	lead := len(p.text) - len(strings.TrimLeft(p.text, " \t"))
	rest := p.text[lead:]
	end := strings.IndexAny(rest, " \t")
	if end < 0 {
		end = len(rest)
	}
	ctrl, err := sass.ParseControlString(rest[:end])
	if err != nil {
		return sass.Instruction{}, p.errorf(lead+1, "%v", err)
	}

	toks, err := lex(rest[end:], lead+end+1)
	if err != nil {
		lerr := err.(*lexError)
		return sass.Instruction{}, p.errorf(lerr.col, "%v", lerr)
	}
	p.toks = toks

	inst := sass.Instruction{Offset: offset, Control: ctrl}

	pred, serr := p.parsePredicate()
	if serr != nil {
		return sass.Instruction{}, serr
	}
	if pred != nil && !pred.IsTrue() {
		inst.Predicate = pred
	}

	op, serr := p.expect(tokWord)
	if serr != nil {
		return sass.Instruction{}, p.unexpected(op, "opcode")
	}
	if !opcodeRegexp.MatchString(op.text) {
		return sass.Instruction{}, p.errorf(op.col, "bad opcode %q", op.text)
	}
	inst.Opcode = op.text

	if k := p.peek().kind; k != tokEOF && k != tokSemicolon {
		for {
			operand, serr := p.parseOperand()
			if serr != nil {
				return sass.Instruction{}, serr
			}
			inst.Operands = append(inst.Operands, operand)
			if !p.accept(tokComma) {
				break
			}
		}
	}

	p.accept(tokSemicolon)
	if t := p.next(); t.kind != tokEOF {
		return sass.Instruction{}, p.unexpected(t, "',' or end of line")
	}
	return inst, nil
}

var (
	opcodeRegexp    = regexp.MustCompile(`^[A-Z][A-Z0-9_]*(\.[A-Z0-9_]+)*$`)
	predicateRegexp = regexp.MustCompile(`^P([0-7]|T)$`)
	registerRegexp  = regexp.MustCompile(`^(U?)R([0-9]+|Z)(\.reuse)?$`)
)

// parsePredicate parses an optional "[@][!]Pn" guard. A bare word is only
// taken as a predicate if another word (the opcode) follows it.
func (p *parser) parsePredicate() (*sass.Predicate, *SyntaxError) {
	explicit := p.accept(tokAt)
	negated := p.accept(tokBang)
	explicit = explicit || negated

	t := p.peek()
	if t.kind != tokWord || !predicateRegexp.MatchString(t.text) {
		if explicit {
			return nil, p.unexpected(t, "predicate")
		}
		return nil, nil
	}
	if !explicit && p.toks[p.pos+1].kind != tokWord {
		return nil, nil
	}
	p.next()

	idx := uint8(sass.AlwaysTrue)
	if t.text[1] != 'T' {
		idx = t.text[1] - '0'
	}
	return &sass.Predicate{Index: idx, Negated: negated}, nil
}

func (p *parser) parseOperand() (sass.Operand, *SyntaxError) {
	t := p.peek()
	switch t.kind {
	case tokLBracket:
		return p.parseMemory()
	case tokMinus:
		return p.parseImmediate()
	case tokWord:
		switch {
		case t.text == "c" && p.toks[p.pos+1].kind == tokLBracket:
			return p.parseConstantMemory()
		case registerRegexp.MatchString(t.text):
			return p.parseRegister()
		case strings.HasPrefix(t.text, "SR_"):
			p.next()
			sr, ok := sass.LookupSpecialRegister(t.text)
			if !ok {
				return nil, p.errorf(t.col, "unknown special register %q", t.text)
			}
			return sr, nil
		default:
			return p.parseImmediate()
		}
	}
	return nil, p.unexpected(t, "operand")
}

func (p *parser) parseRegister() (sass.Register, *SyntaxError) {
	t, err := p.expect(tokWord)
	if err != nil {
		return sass.Register{}, err
	}
	m := registerRegexp.FindStringSubmatch(t.text)
	if m == nil {
		return sass.Register{}, p.errorf(t.col, "bad register %q", t.text)
	}
	r := sass.Register{Uniform: m[1] == "U", Reuse: m[3] != ""}
	switch {
	case m[2] == "Z" && r.Uniform:
		r.Index = sass.UniformZeroRegister
	case m[2] == "Z":
		r.Index = sass.ZeroRegister
	default:
		idx, err := strconv.ParseUint(m[2], 10, 8)
		if err != nil {
			return sass.Register{}, p.errorf(t.col, "register index out of range in %q", t.text)
		}
		r.Index = uint8(idx)
	}
	return r, nil
}

func (p *parser) parseImmediate() (sass.Immediate, *SyntaxError) {
	negative := p.accept(tokMinus)
	t, serr := p.expect(tokWord)
	if serr != nil {
		return sass.Immediate{}, p.unexpected(t, "immediate")
	}
	digits, base := t.text, 10
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits, base = digits[2:], 16
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil || digits == "" {
		return sass.Immediate{}, p.errorf(t.col, "bad immediate %q", t.text)
	}
	if negative {
		v = -v
	}
	return sass.Immediate{Value: v}, nil
}

// parseRegisterOrImmediate parses the address part of a memory or constant
// operand.
func (p *parser) parseRegisterOrImmediate() (sass.Operand, *SyntaxError) {
	if t := p.peek(); t.kind == tokWord && registerRegexp.MatchString(t.text) {
		return p.parseRegister()
	}
	return p.parseImmediate()
}

func (p *parser) parseMemory() (sass.Operand, *SyntaxError) {
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	base, err := p.parseRegisterOrImmediate()
	if err != nil {
		return nil, err
	}
	m := sass.Memory{Base: base}
	if p.accept(tokPlus) {
		m.Offset, err = p.parseImmediate()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) parseConstantMemory() (sass.Operand, *SyntaxError) {
	p.next() // c
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	bank, err := p.parseImmediate()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBracket); err != nil {
		return nil, err
	}
	addr, err := p.parseRegisterOrImmediate()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBracket); err != nil {
		return nil, err
	}
	return sass.ConstantMemory{Bank: bank, Address: addr}, nil
}
