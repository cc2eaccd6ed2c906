package sass

import "testing"

func TestOperandString(t *testing.T) {
	tests := []struct {
		op   Operand
		want string
	}{
		{Immediate{0}, "0x0"},
		{Immediate{0x160}, "0x160"},
		{Immediate{-2}, "-0x2"},
		{Register{Index: 0}, "R0"},
		{Register{Index: 17, Reuse: true}, "R17.reuse"},
		{RZ, "RZ"},
		{Register{Index: 4, Uniform: true}, "UR4"},
		{URZ, "URZ"},
		// 255 is only the zero register in the per-lane file.
		{Register{Index: 255, Uniform: true}, "UR255"},
		{Register{Index: 63}, "R63"},
		{SpecialRegister{Code: 0x2100}, "SR_TID.X"},
		{SpecialRegister{Code: 0x2500}, "SR_CTAID.X"},
		{SpecialRegister{Code: 0x5000}, "SR_CLOCKLO"},
		{SpecialRegister{Code: 0x1234}, "<unknown special register 0x1234>"},
		{ConstantMemory{Bank: Immediate{0}, Address: Immediate{0x160}}, "c[0x0][0x160]"},
		{ConstantMemory{Bank: Immediate{3}, Address: Register{Index: 2}}, "c[0x3][R2]"},
		{Memory{Base: Register{Index: 2}}, "[R2]"},
		{Memory{Base: Register{Index: 2}, Offset: Immediate{0x10}}, "[R2+0x10]"},
		{Memory{Base: Register{Index: 4, Uniform: true}, Offset: Immediate{4}}, "[UR4+0x4]"},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.want {
			t.Errorf("%#v.String() = %q, want %q", tc.op, got, tc.want)
		}
	}
}

func TestRegisterIsZero(t *testing.T) {
	if !RZ.IsZero() || !URZ.IsZero() {
		t.Fatal("zero registers not recognized")
	}
	if (Register{Index: 63}).IsZero() || (Register{Index: 255, Uniform: true}).IsZero() {
		t.Fatal("zero register index applied to the wrong file")
	}
}

func TestPredicateString(t *testing.T) {
	tests := []struct {
		p    Predicate
		want string
	}{
		{Predicate{Index: 0}, "P0"},
		{Predicate{Index: 6, Negated: true}, "!P6"},
		{Predicate{Index: AlwaysTrue}, "PT"},
		{Predicate{Index: AlwaysTrue, Negated: true}, "!PT"},
	}
	for _, tc := range tests {
		if got := tc.p.String(); got != tc.want {
			t.Errorf("%#v.String() = %q, want %q", tc.p, got, tc.want)
		}
	}
}

func TestSpecialRegisterLookup(t *testing.T) {
	for _, name := range SpecialRegisterNames() {
		sr, ok := LookupSpecialRegister(name)
		if !ok {
			t.Fatalf("LookupSpecialRegister(%q) failed", name)
		}
		if !sr.Known() || sr.String() != name {
			t.Fatalf("LookupSpecialRegister(%q) = %v", name, sr)
		}
	}
	if _, ok := LookupSpecialRegister("SR_LANEID"); ok {
		t.Fatal("unexpected special register SR_LANEID")
	}
}
