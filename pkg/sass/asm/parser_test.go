package asm

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/gpu-uarch/nvdis/pkg/sass"
)

func control(t *testing.T, s string) sass.Control {
	t.Helper()
	c, err := sass.ParseControlString(s)
	if err != nil {
		t.Fatalf("bad control %q: %v", s, err)
	}
	return c
}

func reg(i uint8) sass.Register { return sass.Register{Index: i} }

func imm(v int64) sass.Immediate { return sass.Immediate{Value: v} }

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want sass.Instruction
	}{
		{
			name: "mov_r_r",
			src:  "--:-:-:-:4 MOV R0, RZ",
			want: sass.Instruction{Control: control(t, "--:-:-:-:4"), Opcode: "MOV", Operands: []sass.Operand{reg(0), reg(255)}},
		},
		{
			name: "mov_r_c",
			src:  "--:-:0:-:f MOV R1, c[0][0x123]",
			want: sass.Instruction{Control: control(t, "--:-:0:-:f"), Opcode: "MOV", Operands: []sass.Operand{reg(1), sass.ConstantMemory{Bank: imm(0), Address: imm(0x123)}}},
		},
		{
			name: "p0_mov_r_c",
			src:  "--:-:-:Y:1 P0 MOV R0, c[0x0][0x16c]",
			want: sass.Instruction{Control: control(t, "--:-:-:Y:1"), Predicate: &sass.Predicate{Index: 0}, Opcode: "MOV", Operands: []sass.Operand{reg(0), sass.ConstantMemory{Bank: imm(0), Address: imm(0x16c)}}},
		},
		{
			name: "np0_mov_r_c",
			src:  "--:-:-:Y:1 !P0 MOV R0, c[0x0][0x168]",
			want: sass.Instruction{Control: control(t, "--:-:-:Y:1"), Predicate: &sass.Predicate{Index: 0, Negated: true}, Opcode: "MOV", Operands: []sass.Operand{reg(0), sass.ConstantMemory{Bank: imm(0), Address: imm(0x168)}}},
		},
		{
			name: "at_np3",
			src:  "--:-:-:Y:1 @!P3 EXIT ;",
			want: sass.Instruction{Control: control(t, "--:-:-:Y:1"), Predicate: &sass.Predicate{Index: 3, Negated: true}, Opcode: "EXIT"},
		},
		{
			name: "pt",
			src:  "--:-:-:-:1 @PT NOP",
			want: sass.Instruction{Control: control(t, "--:-:-:-:1"), Opcode: "NOP"},
		},
		{
			name: "stg_ro_r",
			src:  "--:-:0:Y:1 STG.E.SYS [R1+4], R0",
			want: sass.Instruction{Control: control(t, "--:-:0:Y:1"), Opcode: "STG.E.SYS", Operands: []sass.Operand{sass.Memory{Base: reg(1), Offset: imm(4)}, reg(0)}},
		},
		{
			name: "stg_ur",
			src:  "--:-:0:Y:1 STG.E.SYS [UR4], R0.reuse",
			want: sass.Instruction{Control: control(t, "--:-:0:Y:1"), Opcode: "STG.E.SYS", Operands: []sass.Operand{sass.Memory{Base: sass.Register{Index: 4, Uniform: true}}, sass.Register{Index: 0, Reuse: true}}},
		},
		{
			name: "exit",
			src:  "01:-:-:Y:5 EXIT",
			want: sass.Instruction{Control: control(t, "01:-:-:Y:5"), Opcode: "EXIT"},
		},
		{
			name: "mov_r_i",
			src:  "03:-:-:-:f MOV R2, 0x160",
			want: sass.Instruction{Control: control(t, "03:-:-:-:f"), Opcode: "MOV", Operands: []sass.Operand{reg(2), imm(0x160)}},
		},
		{
			name: "bra_negative",
			src:  "--:-:-:Y:0 BRA -0x10;",
			want: sass.Instruction{Control: control(t, "--:-:-:Y:0"), Opcode: "BRA", Operands: []sass.Operand{imm(-0x10)}},
		},
		{
			name: "s2r",
			src:  "--:-:0:-:1 S2R R0, SR_TID.X",
			want: sass.Instruction{Control: control(t, "--:-:0:-:1"), Opcode: "S2R", Operands: []sass.Operand{reg(0), sass.SpecialRegister{Code: 0x2100}}},
		},
		{
			name: "uldc",
			src:  "  --:-:-:-:1   ULDC.64 URZ, c[0x0][UR4]  ",
			want: sass.Instruction{Control: control(t, "--:-:-:-:1"), Opcode: "ULDC.64", Operands: []sass.Operand{sass.URZ, sass.ConstantMemory{Bank: imm(0), Address: sass.Register{Index: 4, Uniform: true}}}},
		},
		{
			name: "iadd3",
			src:  "--:-:-:-:2 IADD3 R1, R2, -0x1, RZ",
			want: sass.Instruction{Control: control(t, "--:-:-:-:2"), Opcode: "IADD3", Operands: []sass.Operand{reg(1), reg(2), imm(-1), sass.RZ}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			insts, err := Parse(tc.src)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]sass.Instruction{tc.want}, insts); diff != "" {
				t.Fatalf("mismatch (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestParseScenarios(t *testing.T) {
	insts, err := Parse("--:-:-:-:4 MOV R0, RZ")
	if err != nil {
		t.Fatal(err)
	}
	want := sass.Instruction{
		Control:  sass.Control{WaitMask: 0, ReadBarrier: 7, WriteBarrier: 7, YieldHint: false, Stall: 4},
		Opcode:   "MOV",
		Operands: []sass.Operand{sass.Register{Index: 0}, sass.Register{Index: 255}},
	}
	if len(insts) != 1 || !insts[0].Equal(want) {
		t.Fatalf("got %v, want %v", insts, want)
	}
	if insts[0].Predicate != nil {
		t.Fatalf("unexpected predicate %v", insts[0].Predicate)
	}

	insts, err = Parse("01:-:-:Y:5 EXIT")
	if err != nil {
		t.Fatal(err)
	}
	want = sass.Instruction{
		Control: sass.Control{WaitMask: 1, ReadBarrier: 7, WriteBarrier: 7, YieldHint: true, Stall: 5},
		Opcode:  "EXIT",
	}
	if len(insts) != 1 || !insts[0].Equal(want) || len(insts[0].Operands) != 0 {
		t.Fatalf("got %v, want %v", insts, want)
	}
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	src := `# kernel prologue

	--:-:-:-:2 NOP
   # done
`
	insts, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 1 {
		t.Fatalf("got %d instructions, want 1", len(insts))
	}
	if insts[0].Offset != 0 {
		t.Fatalf("instruction at offset %#x, want 0", insts[0].Offset)
	}
}

func TestParseOffsets(t *testing.T) {
	src := "--:-:-:-:1 NOP\n\n--:-:-:-:1 NOP\n# x\n--:-:-:-:1 EXIT\n"
	insts, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	for i, inst := range insts {
		if inst.Offset != uint64(i)*sass.InstructionSize {
			t.Errorf("instruction %d at offset %#x", i, inst.Offset)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		col  int
	}{
		{"MOV R0, RZ", 1, 1},
		{"--:-:-:-:4", 1, 11},
		{"--:-:-:-:4 mov R0, RZ", 1, 12},
		{"--:-:-:-:4 MOV R0 RZ", 1, 19},
		{"--:-:-:-:4 MOV R0,", 1, 19},
		{"--:-:-:-:4 MOV R0, RZ extra", 1, 23},
		{"--:-:-:-:4 MOV R0, c[0x0]", 1, 26},
		{"--:-:-:-:4 MOV R0, [R1+]", 1, 24},
		{"--:-:-:-:4 MOV R0, R256", 1, 20},
		{"--:-:-:-:4 MOV R0, 0xg", 1, 20},
		{"--:-:-:-:4 S2R R0, SR_NOPE", 1, 20},
		{"--:-:-:-:4 @ MOV R0, RZ", 1, 14},
		{"--:-:-:-:4 @!Q0 MOV R0, RZ", 1, 14},
		{"--:-:-:-:4 MOV R0, $1", 1, 20},
		{"--:-:-:-:4 NOP\n--:-:-:-:4 NOP ;;", 2, 17},
	}
	for _, tc := range tests {
		_, err := Parse(tc.src)
		if err == nil {
			t.Errorf("Parse(%q) succeeded", tc.src)
			continue
		}
		if !errors.Is(err, sass.ErrMalformedText) {
			t.Errorf("Parse(%q): %v is not ErrMalformedText", tc.src, err)
		}
		serr, ok := err.(*SyntaxError)
		if !ok {
			t.Errorf("Parse(%q): %T is not a *SyntaxError", tc.src, err)
			continue
		}
		if serr.Line != tc.line || serr.Col != tc.col {
			t.Errorf("Parse(%q): error at %d:%d, want %d:%d (%v)", tc.src, serr.Line, serr.Col, tc.line, tc.col, err)
		}
	}
}

func TestParseReaderErrorNamesFile(t *testing.T) {
	_, err := ParseReader("kernel.sass", strings.NewReader("--:-:-:-:1 NOP\n--:-:-:-:1 MOV R0 R1\n"))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.HasPrefix(err.Error(), "kernel.sass:2:") {
		t.Fatalf("error %q does not name the line", err)
	}
	if !strings.Contains(err.Error(), "MOV R0 R1") {
		t.Fatalf("error %q does not quote the line", err)
	}
}

func TestParseLine(t *testing.T) {
	inst, err := ParseLine(0x30, "--:-:-:-:1 EXIT")
	if err != nil {
		t.Fatal(err)
	}
	if inst.Offset != 0x30 {
		t.Fatalf("offset %#x, want 0x30", inst.Offset)
	}
	if _, err := ParseLine(0, "EXIT"); !errors.Is(err, sass.ErrMalformedText) {
		t.Fatalf("got %v, want ErrMalformedText", err)
	}
}

func TestParseIdempotent(t *testing.T) {
	src := `--:-:-:-:4 MOV R0, RZ
01:-:-:Y:5 EXIT
--:-:-:Y:1 !P0 MOV R0, c[0x0][0x168]
--:-:0:Y:1 STG.E.SYS [R1+0x4], R0.reuse
--:-:-:-:2 IADD3 UR1, URZ, -0x1, R255
--:-:-:-:1 LDC R1, c[0x3][R2]
--:-:-:Y:0 @P6 BRA 0x20
3f:7:6:-:f S2UR UR5, SR_CLOCKLO
`
	first, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	for _, inst := range first {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	second, err := Parse(sb.String())
	if err != nil {
		t.Fatalf("reparsing %q: %v", sb.String(), err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("mismatch (-first, +second):\n%s", diff)
	}
}
