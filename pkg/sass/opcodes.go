package sass

import "sort"

// layout builds the operand list of an instruction from its fields.
type layout func(f *fields) []Operand

// form is one way of decoding an opcode family.
type form struct {
	mnemonic string
	operands layout
	// wide appends ".64" to the mnemonic when the 64-bit flag is set.
	wide bool
	// uniformDest forces the destination register to be uniform. The
	// encoding does not distinguish the register file for these opcodes.
	uniformDest bool
}

// opcodeDesc describes an opcode family. If any is set the operand-shape
// selector is ignored, otherwise it must be one of the keys of forms.
type opcodeDesc struct {
	forms map[uint8]form
	any   *form
}

// Operand-shape selectors.
const (
	shapeRegReg   = 0x2
	shapeMemReg   = 0x3
	shapeRegConst = 0x6
	shapeImm      = 0x8
	shapeUMemReg  = 0x9
	shapeConst    = 0xa
	shapeConstReg = 0xb
)

func twoOperandLayouts() map[uint8]layout {
	return map[uint8]layout{
		shapeRegReg: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, false), f.reg(f.srcB, false)}
		},
		shapeMemReg: func(f *fields) []Operand {
			return []Operand{Memory{Base: f.reg(f.srcA, false), Offset: f.immHigh()}, f.reg(f.srcB, false)}
		},
		shapeImm: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, false), f.immediate()}
		},
		shapeUMemReg: func(f *fields) []Operand {
			return []Operand{Memory{Base: f.reg(f.srcC, true), Offset: f.immHigh()}, f.reg(f.srcB, false)}
		},
		shapeConst: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, false), f.constant()}
		},
		shapeConstReg: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, false), ConstantMemory{Bank: f.constBank(), Address: f.reg(f.srcA, false)}}
		},
	}
}

func fourOperandLayouts(uniform bool) map[uint8]layout {
	return map[uint8]layout{
		shapeRegReg: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, uniform), f.reg(f.srcA, uniform), f.reg(f.srcB, uniform), f.reg(f.srcC, uniform)}
		},
		shapeRegConst: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, uniform), f.reg(f.srcA, uniform), f.reg(f.srcC, uniform), f.constant()}
		},
		shapeImm: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, uniform), f.reg(f.srcA, uniform), f.immediate(), f.reg(f.srcC, uniform)}
		},
		shapeConst: func(f *fields) []Operand {
			return []Operand{f.reg(f.dst, uniform), f.reg(f.srcA, uniform), f.constant(), f.reg(f.srcC, uniform)}
		},
	}
}

func forms(layouts map[uint8]layout, tmpl form) map[uint8]form {
	r := make(map[uint8]form, len(layouts))
	for shape, l := range layouts {
		fm := tmpl
		fm.operands = l
		r[shape] = fm
	}
	return r
}

func noOperands(*fields) []Operand { return nil }

func specialRead(uniform bool) layout {
	return func(f *fields) []Operand {
		return []Operand{f.reg(f.dst, uniform), SpecialRegister{Code: f.special}}
	}
}

func branchTarget(f *fields) []Operand {
	return []Operand{Immediate{Value: int64(f.offset) + InstructionSize + int64(int32(f.imm))}}
}

// opcodes maps opcode-family selectors to their descriptions. The selector
// alone does not identify every opcode of this generation; the table only
// lists families that have been checked against real code.
var opcodes = func() map[uint8]opcodeDesc {
	ldc := forms(twoOperandLayouts(), form{mnemonic: "LDC", wide: true})
	umov := ldc[shapeImm]
	umov.mnemonic = "UMOV"
	umov.wide = false
	umov.uniformDest = true
	ldc[shapeImm] = umov

	return map[uint8]opcodeDesc{
		0x02: {forms: forms(twoOperandLayouts(), form{mnemonic: "MOV"})},
		0x05: {any: &form{mnemonic: "CS2R", operands: specialRead(false)}},
		0x10: {forms: forms(fourOperandLayouts(false), form{mnemonic: "IADD3"})},
		0x18: {any: &form{mnemonic: "NOP", operands: noOperands}},
		0x19: {any: &form{mnemonic: "S2R", operands: specialRead(false)}},
		// IMAD.MOV, IMAD.IADD and friends share this family and are not
		// told apart yet.
		0x24: {forms: forms(fourOperandLayouts(false), form{mnemonic: "IMAD"})},
		0x47: {any: &form{mnemonic: "BRA", operands: branchTarget}},
		0x4d: {any: &form{mnemonic: "EXIT", operands: noOperands}},
		0x82: {forms: ldc},
		0x86: {forms: forms(twoOperandLayouts(), form{mnemonic: "STG.E.SYS"})},
		0x90: {forms: forms(fourOperandLayouts(true), form{mnemonic: "UIADD3"})},
		0xb9: {forms: forms(twoOperandLayouts(), form{mnemonic: "ULDC", wide: true, uniformDest: true})},
		0xc3: {any: &form{mnemonic: "S2UR", operands: specialRead(true)}},
	}
}()

// Opcodes returns every mnemonic the decoder can produce, sorted.
func Opcodes() []string {
	seen := map[string]bool{}
	for _, desc := range opcodes {
		if desc.any != nil {
			seen[desc.any.mnemonic] = true
		}
		for _, fm := range desc.forms {
			seen[fm.mnemonic] = true
			if fm.wide {
				seen[fm.mnemonic+".64"] = true
			}
		}
	}
	r := make([]string, 0, len(seen))
	for name := range seen {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}
