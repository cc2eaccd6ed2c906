package sass

import (
	"fmt"
	"strings"
)

// InstructionSize is the width of every instruction word in bytes.
const InstructionSize = 16

// Instruction is one decoded or parsed instruction.
type Instruction struct {
	Offset    uint64
	Control   Control
	Predicate *Predicate // nil when the instruction is unconditional
	Opcode    string
	Operands  []Operand
}

// Equal reports whether i and j are structurally equal.
func (i Instruction) Equal(j Instruction) bool {
	if i.Offset != j.Offset || i.Control != j.Control || i.Opcode != j.Opcode {
		return false
	}
	if (i.Predicate == nil) != (j.Predicate == nil) {
		return false
	}
	if i.Predicate != nil && *i.Predicate != *j.Predicate {
		return false
	}
	if len(i.Operands) != len(j.Operands) {
		return false
	}
	for k := range i.Operands {
		if i.Operands[k] != j.Operands[k] {
			return false
		}
	}
	return true
}

// String returns the canonical text of i, which the asm package parses back
// to an equal Instruction (with the same offset slot).
func (i Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(i.Control.String())
	sb.WriteByte(' ')
	if i.Predicate != nil {
		sb.WriteString(i.Predicate.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(i.Opcode)
	for k, op := range i.Operands {
		if k == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(op.String())
	}
	return sb.String()
}

// UnknownInstruction is a word the decoder could not classify. It still
// occupies its 16-byte slot.
type UnknownInstruction struct {
	Offset  uint64
	Control Control
	Cause   error
}

// Equal reports whether u and v are structurally equal. Causes compare by
// message.
func (u UnknownInstruction) Equal(v UnknownInstruction) bool {
	if u.Offset != v.Offset || u.Control != v.Control {
		return false
	}
	if u.Cause == nil || v.Cause == nil {
		return u.Cause == v.Cause
	}
	return u.Cause.Error() == v.Cause.Error()
}

func (u UnknownInstruction) String() string {
	return fmt.Sprintf("%s <unknown instruction: %v>", u.Control, u.Cause)
}

// Result holds the outcome of decoding one word: either an Instruction or an
// UnknownInstruction.
type Result struct {
	inst    *Instruction
	unknown *UnknownInstruction
}

// Known wraps a decoded instruction.
func Known(inst Instruction) Result {
	return Result{inst: &inst}
}

// Unknown wraps an undecodable word.
func Unknown(u UnknownInstruction) Result {
	return Result{unknown: &u}
}

// Instruction returns the decoded instruction, if any.
func (r Result) Instruction() (Instruction, bool) {
	if r.inst == nil {
		return Instruction{}, false
	}
	return *r.inst, true
}

// Unknown returns the undecodable word, if the decode failed.
func (r Result) Unknown() (UnknownInstruction, bool) {
	if r.unknown == nil {
		return UnknownInstruction{}, false
	}
	return *r.unknown, true
}

// Offset returns the byte offset of the word.
func (r Result) Offset() uint64 {
	if r.inst != nil {
		return r.inst.Offset
	}
	if r.unknown != nil {
		return r.unknown.Offset
	}
	return 0
}

// Control returns the control word, which is available even for unknown
// instructions.
func (r Result) Control() Control {
	if r.inst != nil {
		return r.inst.Control
	}
	if r.unknown != nil {
		return r.unknown.Control
	}
	return Control{}
}

// Err returns the cause of a failed decode, nil otherwise.
func (r Result) Err() error {
	if r.unknown != nil {
		return r.unknown.Cause
	}
	return nil
}

// Equal reports whether r and s hold equal values.
func (r Result) Equal(s Result) bool {
	switch {
	case r.inst != nil && s.inst != nil:
		return r.inst.Equal(*s.inst)
	case r.unknown != nil && s.unknown != nil:
		return r.unknown.Equal(*s.unknown)
	}
	return r.inst == nil && s.inst == nil && r.unknown == nil && s.unknown == nil
}

func (r Result) String() string {
	switch {
	case r.inst != nil:
		return r.inst.String()
	case r.unknown != nil:
		return r.unknown.String()
	}
	return "<nil>"
}

// Instructions returns the decoded instructions of rs in order, or false if
// any of them is unknown.
func Instructions(rs []Result) ([]Instruction, bool) {
	r := make([]Instruction, 0, len(rs))
	for _, res := range rs {
		inst, ok := res.Instruction()
		if !ok {
			return nil, false
		}
		r = append(r, inst)
	}
	return r, true
}

// WithoutReuse returns a copy of i with the reuse flags of the control word
// and of every register operand cleared. Text produced by other tools may
// not carry reuse information, so comparisons against it use this form.
func (i Instruction) WithoutReuse() Instruction {
	i.Control.ReuseFlags = 0
	ops := make([]Operand, len(i.Operands))
	for k, op := range i.Operands {
		ops[k] = clearReuse(op)
	}
	if i.Operands == nil {
		ops = nil
	}
	i.Operands = ops
	return i
}

func clearReuse(op Operand) Operand {
	switch op := op.(type) {
	case Register:
		op.Reuse = false
		return op
	case ConstantMemory:
		op.Address = clearReuse(op.Address)
		return op
	case Memory:
		op.Base = clearReuse(op.Base)
		return op
	}
	return op
}
