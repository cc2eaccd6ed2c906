package sass

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// fields are the bit-fields of an instruction word. They are extracted
// eagerly; which ones are meaningful depends on the operand layout.
type fields struct {
	offset uint64

	imm     uint32
	dst     uint8
	srcA    uint8
	srcB    uint8
	srcC    uint8
	special uint16
	is64    bool

	family uint8
	shape  uint8
}

func extractFields(offset, lo, hi uint64) fields {
	return fields{
		offset:  offset,
		imm:     uint32(lo >> 32),
		dst:     uint8(lo >> 16),
		srcA:    uint8(lo >> 24),
		srcB:    uint8(lo >> 32),
		srcC:    uint8(hi),
		special: uint16(hi),
		is64:    hi&0x200 != 0,
		family:  uint8(lo),
		shape:   uint8(lo>>8) & 0xf,
	}
}

func (f *fields) reg(index uint8, uniform bool) Register {
	return Register{Index: index, Uniform: uniform}
}

func (f *fields) immediate() Immediate {
	return Immediate{Value: int64(f.imm)}
}

func (f *fields) immHigh() Immediate {
	return Immediate{Value: int64(f.imm >> 8)}
}

func (f *fields) constBank() Immediate {
	return Immediate{Value: int64(f.imm & 0xff)}
}

// constant returns the constant bank operand. The bank is addressed in
// 32-bit words, the operand carries a byte offset.
func (f *fields) constant() ConstantMemory {
	return ConstantMemory{Bank: f.constBank(), Address: Immediate{Value: int64(f.imm>>8) << 2}}
}

func decodePredicate(lo uint64) *Predicate {
	idx := uint8(lo>>12) & 0x7
	if idx == AlwaysTrue {
		return nil
	}
	return &Predicate{Index: idx, Negated: lo&0x8000 != 0}
}

// Decode decodes the instruction word (lo, hi) found at offset. Words that
// cannot be decoded produce an UnknownInstruction result.
func Decode(offset, lo, hi uint64) Result {
	ctrl := DecodeControl(hi)
	f := extractFields(offset, lo, hi)

	desc, ok := opcodes[f.family]
	if !ok {
		return Unknown(UnknownInstruction{
			Offset:  offset,
			Control: ctrl,
			Cause:   errors.Wrapf(ErrUnrecognizedOpcode, "opcode %#x", f.family),
		})
	}

	fm := desc.any
	if fm == nil {
		shapeForm, ok := desc.forms[f.shape]
		if !ok {
			return Unknown(UnknownInstruction{
				Offset:  offset,
				Control: ctrl,
				Cause:   errors.Wrapf(ErrUnrecognizedOperandPattern, "operand pattern %#x for opcode %#x", uint16(f.shape)<<8, f.family),
			})
		}
		fm = &shapeForm
	}

	mnemonic := fm.mnemonic
	if fm.wide && f.is64 {
		mnemonic += ".64"
	}
	operands := fm.operands(&f)
	if fm.uniformDest && len(operands) > 0 {
		if r, ok := operands[0].(Register); ok {
			r.Uniform = true
			operands[0] = r
		}
	}

	return Known(Instruction{
		Offset:    offset,
		Control:   ctrl,
		Predicate: decodePredicate(lo),
		Opcode:    mnemonic,
		Operands:  operands,
	})
}

// DecodeWord decodes the 16-byte little-endian instruction word at the
// start of word.
func DecodeWord(offset uint64, word []byte) Result {
	_ = word[InstructionSize-1]
	lo := binary.LittleEndian.Uint64(word[:8])
	hi := binary.LittleEndian.Uint64(word[8:16])
	return Decode(offset, lo, hi)
}

// Disassemble decodes every instruction word in data, starting at offset 0.
// Undecodable words do not stop the disassembly, the only error is a buffer
// whose length is not a multiple of InstructionSize.
func Disassemble(data []byte) ([]Result, error) {
	if len(data)%InstructionSize != 0 {
		return nil, errors.Wrapf(ErrInvalidBufferLength, "got %d bytes", len(data))
	}
	r := make([]Result, 0, len(data)/InstructionSize)
	for off := 0; off < len(data); off += InstructionSize {
		r = append(r, DecodeWord(uint64(off), data[off:off+InstructionSize]))
	}
	return r, nil
}
