package cuobjdump

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gpu-uarch/nvdis/pkg/sass"
)

const listing = `
Fatbin elf code:
================
arch = sm_75
code version = [1,7]
producer = <unknown>
host = linux
compile_size = 64bit

	code for sm_75
		Function : _Z6kernelPi
	.headerflags    @"EF_CUDA_SM75 EF_CUDA_PTX_SM(EF_CUDA_SM75)"
        /*0000*/                   MOV R1, c[0x0][0x28] ;                    /* 0x00000a0000017a02 */
                                                                             /* 0x000fd00000000f00 */
        /*0010*/                   S2R R0, SR_TID.X ;                        /* 0x0000000000007919 */
                                                                             /* 0x000e220000002100 */
        /*0020*/              @!P0 EXIT ;                                    /* 0x000000000000894d */
                                                                             /* 0x000fea0003800000 */
        /*0030*/                   BRA 0x30;                                 /* 0xfffffff000007947 */
                                                                             /* 0x000fea0003800000 */
		..........



		Function : _Z5emptyv
	.headerflags    @"EF_CUDA_SM75 EF_CUDA_PTX_SM(EF_CUDA_SM75)"
        /*0000*/                   EXIT ;                                    /* 0x000000000000794d */
                                                                             /* 0x001fe200078e00ff */
		..........
`

var words = map[string][][2]uint64{
	"_Z6kernelPi": {
		{0x00000a0000017a02, 0x000fd00000000f00},
		{0x0000000000007919, 0x000e220000002100},
		{0x000000000000894d, 0x000fea0003800000},
		{0xfffffff000007947, 0x000fea0003800000},
	},
	"_Z5emptyv": {
		{0x000000000000794d, 0x001fe200078e00ff},
	},
}

func TestParse(t *testing.T) {
	fns, err := Parse(strings.NewReader(listing))
	if err != nil {
		t.Fatal(err)
	}
	if len(fns) != 2 || fns[0].Name != "_Z6kernelPi" || fns[1].Name != "_Z5emptyv" {
		t.Fatalf("unexpected functions %v", fns)
	}

	wantSource := `--:-:-:-:8 MOV R1, c[0x0][0x28]
--:-:0:Y:1 S2R R0, SR_TID.X
--:-:-:Y:5 @!P0 EXIT
--:-:-:Y:5 BRA 0x30
`
	if diff := cmp.Diff(wantSource, fns[0].Source); diff != "" {
		t.Fatalf("source mismatch (-want, +got):\n%s", diff)
	}
	if fns[1].Source != "01:-:-:Y:1 EXIT\n" {
		t.Fatalf("bad source %q", fns[1].Source)
	}

	// The text listing agrees with the decoder.
	for _, fn := range fns {
		ws := words[fn.Name]
		if len(fn.Insts) != len(ws) {
			t.Fatalf("%s: %d instructions, want %d", fn.Name, len(fn.Insts), len(ws))
		}
		for i, w := range ws {
			res := sass.Decode(uint64(i)*sass.InstructionSize, w[0], w[1])
			got, ok := res.Instruction()
			if !ok {
				t.Fatalf("%s+%#x: %v", fn.Name, i*sass.InstructionSize, res.Err())
			}
			if diff := cmp.Diff(fn.Insts[i], got.WithoutReuse()); diff != "" {
				t.Fatalf("%s+%#x mismatch (-text, +binary):\n%s", fn.Name, i*sass.InstructionSize, diff)
			}
		}
	}
}

func TestParseMalformed(t *testing.T) {
	src := `		Function : f
        /*0000*/                   MOV R1 c[0x0][0x28] ;                     /* 0x00000a0000017a02 */
                                                                             /* 0x000fd00000000f00 */
`
	if _, err := Parse(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "listing.txt")
	if err := os.WriteFile(out, []byte(listing), 0600); err != nil {
		t.Fatal(err)
	}
	tool := filepath.Join(dir, "cuobjdump")
	script := "#!/bin/sh\n[ \"$1\" = -arch ] && [ \"$3\" = --dump-sass ] || exit 2\ncat " + out + "\n"
	if err := os.WriteFile(tool, []byte(script), 0700); err != nil {
		t.Fatal(err)
	}
	if !Available(tool) {
		t.Fatalf("%s not available", tool)
	}
	fns, err := Run(context.Background(), []string{tool, "-arch", "sm_75"}, "kernel.cubin")
	if err != nil {
		t.Fatal(err)
	}
	if len(fns) != 2 {
		t.Fatalf("got %d functions", len(fns))
	}

	failing := filepath.Join(dir, "failing")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0700); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(context.Background(), []string{failing}, "kernel.cubin"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("got %v, want an error mentioning boom", err)
	}
}

func TestAvailable(t *testing.T) {
	if Available("nvdis-no-such-tool") {
		t.Fatal("unexpected tool")
	}
	if _, err := Run(context.Background(), nil, "kernel.cubin"); err == nil {
		t.Fatal("Run succeeded without a command")
	}
}
