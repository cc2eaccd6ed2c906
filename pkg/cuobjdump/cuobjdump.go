// Package cuobjdump turns the output of NVIDIA's cuobjdump into
// instructions, so that it can serve as a reference for the decoder.
package cuobjdump

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gpu-uarch/nvdis/pkg/logflags"
	"github.com/gpu-uarch/nvdis/pkg/sass"
	"github.com/gpu-uarch/nvdis/pkg/sass/asm"
)

// Function is the listing of one function as printed by cuobjdump.
type Function struct {
	Name string
	// Source is the listing in the syntax accepted by package asm.
	Source string
	Insts  []sass.Instruction
}

var (
	functionRe = regexp.MustCompile(`^\s+Function : (\S+)`)
	loRe       = regexp.MustCompile(`/\*[\da-f]+\*/\s+([^;]+);\s+/\*\s*0x([\da-f]+)\s*\*/`)
	hiRe       = regexp.MustCompile(`^\s+/\*\s*0x([\da-f]+)\s*\*/`)
)

// Available reports whether the tool can be found.
func Available(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

// Run runs the command line argv on the cubin at path and parses its
// output. argv[0] is the tool, the rest are extra arguments.
func Run(ctx context.Context, argv []string, path string) ([]Function, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	log := logflags.OracleLogger()
	tool := argv[0]
	args := append(append([]string{}, argv[1:]...), "--dump-sass", path)
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	log.Debugf("running %s", strings.Join(cmd.Args, " "))
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed: %s", tool, strings.TrimSpace(stderr.String()))
	}
	fns, err := Parse(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	log.Debugf("%s listed %d functions", tool, len(fns))
	return fns, nil
}

// Parse reads cuobjdump --dump-sass output. Every instruction is printed
// on two lines: the text and the lo half, then the hi half. The control
// word is taken from the hi half and prepended to the text.
func Parse(r io.Reader) ([]Function, error) {
	var (
		fns  []Function
		cur  *Function
		src  strings.Builder
		text string
	)
	flush := func() error {
		if cur == nil {
			return nil
		}
		cur.Source = src.String()
		insts, err := asm.ParseReader(cur.Name, strings.NewReader(cur.Source))
		if err != nil {
			return errors.Wrapf(err, "function %s", cur.Name)
		}
		cur.Insts = insts
		fns = append(fns, *cur)
		return nil
	}

	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := scan.Text()
		if m := functionRe.FindStringSubmatch(line); m != nil {
			if err := flush(); err != nil {
				return nil, err
			}
			cur = &Function{Name: m[1]}
			src.Reset()
			text = ""
			continue
		}
		if m := hiRe.FindStringSubmatch(line); m != nil {
			if text == "" {
				continue
			}
			hi, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bad instruction word %q", m[1])
			}
			if cur == nil {
				cur = &Function{}
			}
			fmt.Fprintf(&src, "%s %s\n", sass.DecodeControl(hi), strings.TrimSpace(text))
			text = ""
			continue
		}
		if m := loRe.FindStringSubmatch(line); m != nil {
			text = m[1]
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return fns, nil
}
