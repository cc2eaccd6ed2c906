package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gpu-uarch/nvdis/pkg/sass"
	"github.com/gpu-uarch/nvdis/pkg/terminal/colorize"
)

// Function is a named stream of decoded instructions.
type Function struct {
	Name   string
	Symbol string
	Insts  []sass.Result
}

// DisasmPrint writes the listing of every function in fns to out. Styling
// only comes from palette; a nil palette prints plain text.
func DisasmPrint(fns []Function, out io.Writer, palette colorize.Palette) error {
	bw := bufio.NewWriter(out)
	for i, fn := range fns {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		name := fn.Name
		if name != fn.Symbol && fn.Symbol != "" {
			name = fmt.Sprintf("%s (%s)", fn.Name, fn.Symbol)
		}
		fmt.Fprintf(bw, "%s:\n", palette.Wrap(colorize.FunctionStyle, name))
		printResults(bw, fn.Insts, palette)
	}
	return bw.Flush()
}

// InstructionsPrint writes a listing of parsed instructions to out.
func InstructionsPrint(insts []sass.Instruction, out io.Writer, palette colorize.Palette) error {
	rs := make([]sass.Result, len(insts))
	for i := range insts {
		rs[i] = sass.Known(insts[i])
	}
	bw := bufio.NewWriter(out)
	printResults(bw, rs, palette)
	return bw.Flush()
}

// printResults writes one line per result. Column widths are fixed so that
// escape sequences do not disturb the alignment.
func printResults(out io.Writer, rs []sass.Result, palette colorize.Palette) {
	for _, r := range rs {
		fmt.Fprintf(out, "%s  %s  ", palette.Wrap(colorize.OffsetStyle, fmt.Sprintf("%#08x", r.Offset())), FormatControl(r.Control(), palette))
		inst, ok := r.Instruction()
		if !ok {
			fmt.Fprintf(out, "    %s\n", palette.Wrap(colorize.ErrorStyle, fmt.Sprintf("<unknown instruction: %v>", r.Err())))
			continue
		}
		fmt.Fprintf(out, "%s %s\n", predicateColumn(inst.Predicate, palette), formatBody(inst, palette))
	}
}

func predicateColumn(pred *sass.Predicate, palette colorize.Palette) string {
	const width = 3
	if pred == nil {
		return strings.Repeat(" ", width)
	}
	s := pred.String()
	pad := ""
	if len(s) < width {
		pad = strings.Repeat(" ", width-len(s))
	}
	return pad + palette.Wrap(colorize.PredicateStyle, s)
}

// FormatInstruction returns the canonical text of inst with palette
// applied. With a nil palette it equals inst.String().
func FormatInstruction(inst sass.Instruction, palette colorize.Palette) string {
	var sb strings.Builder
	sb.WriteString(FormatControl(inst.Control, palette))
	sb.WriteByte(' ')
	if inst.Predicate != nil {
		sb.WriteString(palette.Wrap(colorize.PredicateStyle, inst.Predicate.String()))
		sb.WriteByte(' ')
	}
	sb.WriteString(formatBody(inst, palette))
	return sb.String()
}

func formatBody(inst sass.Instruction, palette colorize.Palette) string {
	var sb strings.Builder
	sb.WriteString(palette.Wrap(colorize.OpcodeStyle, inst.Opcode))
	for i, op := range inst.Operands {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(palette.Wrap(colorize.SymbolStyle, ","))
			sb.WriteByte(' ')
		}
		sb.WriteString(FormatOperand(op, palette))
	}
	return sb.String()
}

// FormatControl renders a control word, dimming the fields that are unset.
func FormatControl(c sass.Control, palette colorize.Palette) string {
	if palette == nil {
		return c.String()
	}
	fields := strings.Split(c.String(), ":")
	for i, f := range fields[:4] {
		style := colorize.ControlActiveStyle
		if strings.Trim(f, "-") == "" {
			style = colorize.ControlInactiveStyle
		}
		fields[i] = palette.Wrap(style, f)
	}
	fields[4] = palette.Wrap(colorize.ControlActiveStyle, fields[4])
	return strings.Join(fields, palette.Wrap(colorize.SymbolStyle, ":"))
}

// FormatOperand renders one operand.
func FormatOperand(op sass.Operand, palette colorize.Palette) string {
	if palette == nil {
		return op.String()
	}
	sym := func(s string) string { return palette.Wrap(colorize.SymbolStyle, s) }
	switch op := op.(type) {
	case sass.Immediate:
		return palette.Wrap(colorize.ImmediateStyle, op.String())
	case sass.Register:
		return palette.Wrap(colorize.RegisterStyle, op.String())
	case sass.SpecialRegister:
		if !op.Known() {
			return palette.Wrap(colorize.ErrorStyle, op.String())
		}
		return palette.Wrap(colorize.SpecialRegisterStyle, op.String())
	case sass.ConstantMemory:
		return palette.Wrap(colorize.ConstantStyle, "c") + sym("[") + FormatOperand(op.Bank, palette) + sym("][") + FormatOperand(op.Address, palette) + sym("]")
	case sass.Memory:
		if op.Offset.Value == 0 {
			return sym("[") + FormatOperand(op.Base, palette) + sym("]")
		}
		return sym("[") + FormatOperand(op.Base, palette) + sym("+") + FormatOperand(op.Offset, palette) + sym("]")
	}
	return op.String()
}
