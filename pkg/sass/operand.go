package sass

import (
	"fmt"
	"sort"
)

// Operand is one instruction operand. The concrete types are Immediate,
// Register, SpecialRegister, ConstantMemory and Memory; all of them are
// comparable with ==.
type Operand interface {
	fmt.Stringer
	isOperand()
}

// Immediate is an integer literal.
type Immediate struct {
	Value int64
}

func (Immediate) isOperand() {}

func (i Immediate) String() string {
	return fmt.Sprintf("%#x", i.Value)
}

// Indices of the architectural zero registers.
const (
	ZeroRegister        = 255
	UniformZeroRegister = 63
)

// Register is a per-lane (R) or uniform (UR) general purpose register.
type Register struct {
	Index   uint8
	Uniform bool
	Reuse   bool
}

var (
	// RZ always reads as zero.
	RZ = Register{Index: ZeroRegister}
	// URZ is the uniform zero register.
	URZ = Register{Index: UniformZeroRegister, Uniform: true}
)

func (Register) isOperand() {}

// IsZero reports whether r is RZ or URZ.
func (r Register) IsZero() bool {
	if r.Uniform {
		return r.Index == UniformZeroRegister
	}
	return r.Index == ZeroRegister
}

func (r Register) String() string {
	prefix := "R"
	if r.Uniform {
		prefix = "UR"
	}
	var s string
	if r.IsZero() {
		s = prefix + "Z"
	} else {
		s = fmt.Sprintf("%s%d", prefix, r.Index)
	}
	if r.Reuse {
		s += ".reuse"
	}
	return s
}

// SpecialRegister is a read-only hardware register addressed by a 16-bit
// code. Codes missing from the name table are still valid values.
type SpecialRegister struct {
	Code uint16
}

var specialRegisterNames = map[uint16]string{
	0x2100: "SR_TID.X",
	0x2500: "SR_CTAID.X",
	0x5000: "SR_CLOCKLO",
}

var specialRegisterCodes = func() map[string]uint16 {
	r := make(map[string]uint16, len(specialRegisterNames))
	for code, name := range specialRegisterNames {
		r[name] = code
	}
	return r
}()

// LookupSpecialRegister returns the special register called name.
func LookupSpecialRegister(name string) (SpecialRegister, bool) {
	code, ok := specialRegisterCodes[name]
	return SpecialRegister{Code: code}, ok
}

// SpecialRegisterNames returns the known special register names, sorted.
func SpecialRegisterNames() []string {
	r := make([]string, 0, len(specialRegisterCodes))
	for name := range specialRegisterCodes {
		r = append(r, name)
	}
	sort.Strings(r)
	return r
}

func (SpecialRegister) isOperand() {}

// Known reports whether the code has a name.
func (s SpecialRegister) Known() bool {
	_, ok := specialRegisterNames[s.Code]
	return ok
}

func (s SpecialRegister) String() string {
	if name, ok := specialRegisterNames[s.Code]; ok {
		return name
	}
	return fmt.Sprintf("<unknown special register %#x>", s.Code)
}

// ConstantMemory addresses a constant bank. Address is either an Immediate
// byte offset or a Register.
type ConstantMemory struct {
	Bank    Immediate
	Address Operand
}

func (ConstantMemory) isOperand() {}

func (c ConstantMemory) String() string {
	return fmt.Sprintf("c[%s][%s]", c.Bank, c.Address)
}

// Memory is a [base+offset] address. Base is a Register or an Immediate.
type Memory struct {
	Base   Operand
	Offset Immediate
}

func (Memory) isOperand() {}

func (m Memory) String() string {
	if m.Offset.Value == 0 {
		return fmt.Sprintf("[%s]", m.Base)
	}
	return fmt.Sprintf("[%s+%s]", m.Base, m.Offset)
}

// AlwaysTrue is the predicate index that holds unconditionally (PT).
const AlwaysTrue = 7

// Predicate is a predicate register guarding an instruction.
type Predicate struct {
	Index   uint8
	Negated bool
}

// IsTrue reports whether p is PT, which guards nothing.
func (p Predicate) IsTrue() bool {
	return p.Index == AlwaysTrue
}

func (p Predicate) String() string {
	s := fmt.Sprintf("P%d", p.Index)
	if p.IsTrue() {
		s = "PT"
	}
	if p.Negated {
		return "!" + s
	}
	return s
}
