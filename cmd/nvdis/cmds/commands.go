package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gpu-uarch/nvdis/pkg/config"
	"github.com/gpu-uarch/nvdis/pkg/cubin"
	"github.com/gpu-uarch/nvdis/pkg/cuobjdump"
	"github.com/gpu-uarch/nvdis/pkg/logflags"
	"github.com/gpu-uarch/nvdis/pkg/sass"
	"github.com/gpu-uarch/nvdis/pkg/sass/asm"
	"github.com/gpu-uarch/nvdis/pkg/terminal"
	"github.com/gpu-uarch/nvdis/pkg/terminal/colorize"
	"github.com/gpu-uarch/nvdis/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// configFile overrides the default config file location.
	configFile string
	// color is one of auto, always or never. Empty means the config file decides.
	color string
	// theme is the palette name. Empty means the config file decides.
	theme string
	// format is text or struct.
	format string

	// functions restricts dump and verify to the named functions.
	functions []string
	// verifySource is a listing to compare the decoded functions against.
	verifySource string
	// verifyCuobjdump compares against the output of cuobjdump.
	verifyCuobjdump bool
	// extractOutput is the path of the cubin written by extract.
	extractOutput string
	// versionVerbose adds build information to the version output.
	versionVerbose bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const (
	formatText   = "text"
	formatStruct = "struct"
)

const nvdisCommandLongDesc = `nvdis decodes and parses sm_75 (Turing) GPU machine code.

Every instruction is a 16 byte word. nvdis turns these words into structured
instructions and prints them in an assembly syntax that it can also read
back, which makes it possible to check the decoder against listings produced
by other tools.`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	functions = nil
	verifySource = ""
	verifyCuobjdump = false
	versionVerbose = false
	extractOutput = ""

	// Main nvdis root command.
	rootCommand = &cobra.Command{
		Use:           "nvdis",
		Short:         "nvdis is a disassembler for NVIDIA sm_75 machine code.",
		Long:          nvdisCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}
			return logflags.Setup(log, logOutput, logDest)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'nvdis help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'nvdis help log').")
	rootCommand.PersistentFlags().StringVar(&configFile, "config", "", "Config file to use instead of ~/.nvdis/config.yml.")
	choiceFlag(rootCommand.PersistentFlags(), &color, "color", "", "When to color the output (default from the config file).", terminal.ColorAuto, terminal.ColorAlways, terminal.ColorNever)
	rootCommand.PersistentFlags().StringVar(&theme, "theme", "", "Color palette: none or solarized.")
	choiceFlag(rootCommand.PersistentFlags(), &format, "format", formatText, "Output format.", formatText, formatStruct)

	// 'dump' subcommand.
	dumpCommand := &cobra.Command{
		Use:   "dump <file.cubin>",
		Short: "Disassemble the functions of a cubin.",
		Long: `Disassemble the functions of a cubin.

Every .text.<function> section of the ELF file is decoded as a stream of 16
byte instruction words. Words that cannot be decoded are listed as unknown
instructions and do not stop the listing.`,
		Args: cobra.ExactArgs(1),
		RunE: dumpCmd,
	}
	dumpCommand.Flags().StringSliceVarP(&functions, "function", "f", nil, "Only disassemble the named functions (mangled or demangled).")
	rootCommand.AddCommand(dumpCommand)

	// 'parse' subcommand.
	parseCommand := &cobra.Command{
		Use:   "parse <file.sass|->",
		Short: "Parse an assembly listing.",
		Long: `Parse an assembly listing and print it back in canonical form.

Each non blank line that does not start with '#' holds one instruction:

	WM:RB:WB:Y:S [@][!]Pn OPCODE operand, operand, ... ;

The i-th instruction is placed at offset 16*i. Use '-' to read from standard
input.`,
		Args: cobra.ExactArgs(1),
		RunE: parseCmd,
	}
	rootCommand.AddCommand(parseCommand)

	// 'verify' subcommand.
	verifyCommand := &cobra.Command{
		Use:   "verify <file.cubin>",
		Short: "Compare the decoded functions of a cubin against a reference listing.",
		Long: `Compare the decoded functions of a cubin against a reference listing.

The reference is either an assembly listing given with --source, which must
describe a single function, or the output of cuobjdump --dump-sass when
--cuobjdump is set. Reuse flags are not part of the comparison because
textual listings do not carry them.`,
		Args: cobra.ExactArgs(1),
		RunE: verifyCmd,
	}
	verifyCommand.Flags().StringSliceVarP(&functions, "function", "f", nil, "Only verify the named functions (mangled or demangled).")
	verifyCommand.Flags().StringVar(&verifySource, "source", "", "Assembly listing of the function.")
	verifyCommand.Flags().BoolVar(&verifyCuobjdump, "cuobjdump", false, "Use cuobjdump as the reference.")
	rootCommand.AddCommand(verifyCommand)

	// 'extract' subcommand.
	extractCommand := &cobra.Command{
		Use:   "extract <file.cubin>",
		Short: "Copy functions of a cubin into a new cubin.",
		Long: `Copy the code of the functions selected with --function into a new cubin
holding nothing else. This is useful to build small inputs for dump and
verify out of large programs.`,
		Args: cobra.ExactArgs(1),
		RunE: extractCmd,
	}
	extractCommand.Flags().StringSliceVarP(&functions, "function", "f", nil, "Functions to copy (mangled or demangled).")
	extractCommand.Flags().StringVarP(&extractOutput, "output", "o", "", "Output path for the cubin.")
	rootCommand.AddCommand(extractCommand)

	// 'repl' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Parse instructions interactively.",
		Long: `Read instructions from the terminal, one per line, and print them back in
canonical form. Tab completes opcodes, special registers and register names.`,
		Args: cobra.NoArgs,
		RunE: replCmd,
	})

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nvdis\n%s\n", version.NvdisVersion)
			if versionVerbose {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "print verbose version info")
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	cubin		Log ELF loading and decoding of functions
	oracle		Log invocations of cuobjdump
	cli		Log command line operations (default)

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.

`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func loadConfig() error {
	if configFile == "" {
		conf = config.LoadConfig()
		return nil
	}
	c, err := config.LoadConfigFile(configFile)
	if err != nil {
		return err
	}
	conf = c
	return nil
}

// output returns the writer and palette for listings. Commands whose output
// was redirected with SetOut only get colors when asked for explicitly.
func output(cmd *cobra.Command) (io.Writer, colorize.Palette, error) {
	name := theme
	if name == "" {
		name = conf.Theme
	}
	palette, ok := colorize.Theme(name)
	if !ok {
		return nil, nil, errors.Errorf("unknown theme %q", name)
	}
	if len(conf.Colors) > 0 {
		var err error
		palette, err = palette.Override(conf.Colors)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid colors in config file")
		}
	}
	mode := color
	if mode == "" {
		mode = conf.Color
	}
	if w := cmd.OutOrStdout(); w != os.Stdout {
		if strings.ToLower(mode) == terminal.ColorAlways {
			return w, palette, nil
		}
		return w, nil, nil
	}
	return terminal.Stdout(mode, palette)
}

var spewConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	DisableMethods:          true,
	SortKeys:                true,
}

// selectFunctions returns the functions of f named by --function, or all of
// them.
func selectFunctions(f *cubin.File) ([]*cubin.Function, error) {
	if len(functions) == 0 {
		return f.Functions, nil
	}
	r := make([]*cubin.Function, 0, len(functions))
	for _, name := range functions {
		fn, ok := f.Lookup(name)
		if !ok {
			return nil, errors.Errorf("function %s not found in %s", name, f.Path)
		}
		r = append(r, fn)
	}
	return r, nil
}

func dumpCmd(cmd *cobra.Command, args []string) error {
	f, err := cubin.Open(args[0], conf.GetCacheSize())
	if err != nil {
		return err
	}
	defer f.Close()

	fns, err := selectFunctions(f)
	if err != nil {
		return err
	}
	logflags.CLILogger().Debugf("disassembling %d functions of %s", len(fns), args[0])
	results, err := f.DisassembleAll(context.Background(), fns)
	if err != nil {
		return err
	}

	out, palette, err := output(cmd)
	if err != nil {
		return err
	}
	listing := make([]terminal.Function, len(fns))
	for i, fn := range fns {
		listing[i] = terminal.Function{Name: fn.Name, Symbol: fn.Symbol, Insts: results[i]}
	}
	if format == formatStruct {
		spewConfig.Fdump(out, listing)
		return nil
	}
	return terminal.DisasmPrint(listing, out, palette)
}

func extractCmd(cmd *cobra.Command, args []string) error {
	if len(functions) == 0 {
		return errors.New("select at least one function with --function")
	}
	if extractOutput == "" {
		return errors.New("--output is required")
	}
	f, err := cubin.Open(args[0], conf.GetCacheSize())
	if err != nil {
		return err
	}
	defer f.Close()

	fns, err := selectFunctions(f)
	if err != nil {
		return err
	}
	fh, err := os.Create(extractOutput)
	if err != nil {
		return err
	}
	if err := cubin.Write(fh, fns); err != nil {
		fh.Close()
		return err
	}
	logflags.CLILogger().Debugf("wrote %d functions to %s", len(fns), extractOutput)
	return fh.Close()
}

func readListing(path string, stdin io.Reader) ([]sass.Instruction, error) {
	if path == "-" {
		return asm.ParseReader("<stdin>", stdin)
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return asm.ParseReader(path, fh)
}

func parseCmd(cmd *cobra.Command, args []string) error {
	insts, err := readListing(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	logflags.CLILogger().Debugf("parsed %d instructions from %s", len(insts), args[0])
	out, palette, err := output(cmd)
	if err != nil {
		return err
	}
	if format == formatStruct {
		spewConfig.Fdump(out, insts)
		return nil
	}
	return terminal.InstructionsPrint(insts, out, palette)
}

func verifyCmd(cmd *cobra.Command, args []string) error {
	if verifySource != "" && verifyCuobjdump {
		return errors.New("--source and --cuobjdump are mutually exclusive")
	}
	f, err := cubin.Open(args[0], conf.GetCacheSize())
	if err != nil {
		return err
	}
	defer f.Close()

	fns, err := selectFunctions(f)
	if err != nil {
		return err
	}

	reference := make(map[string][]sass.Instruction)
	switch {
	case verifySource != "":
		if len(fns) != 1 {
			return errors.Errorf("%s has %d functions, select one with --function", args[0], len(fns))
		}
		insts, err := readListing(verifySource, cmd.InOrStdin())
		if err != nil {
			return err
		}
		reference[fns[0].Symbol] = insts
	case verifyCuobjdump:
		argv := conf.GetCuobjdump()
		if !cuobjdump.Available(argv[0]) {
			return errors.Errorf("%s not found", argv[0])
		}
		listed, err := cuobjdump.Run(context.Background(), argv, args[0])
		if err != nil {
			return err
		}
		for _, fn := range listed {
			reference[fn.Name] = fn.Insts
		}
	default:
		return errors.New("one of --source or --cuobjdump is required")
	}

	results, err := f.DisassembleAll(context.Background(), fns)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, fn := range fns {
		want, ok := reference[fn.Symbol]
		if !ok {
			fmt.Fprintf(out, "%s: no reference listing\n", fn.Name)
			failed++
			continue
		}
		if diff := compare(want, results[i]); diff != "" {
			fmt.Fprintf(out, "%s: mismatch (-want, +got)\n%s", fn.Name, diff)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d instructions)\n", fn.Name, len(want))
	}
	if failed > 0 {
		return errors.Errorf("%d of %d functions differ from the reference", failed, len(fns))
	}
	return nil
}

// compare returns a human readable difference between the reference
// listing and the decoded words, or "" if they are structurally equal once
// reuse flags are removed.
func compare(want []sass.Instruction, got []sass.Result) string {
	w := make([]sass.Result, len(want))
	for i := range want {
		w[i] = sass.Known(want[i].WithoutReuse())
	}
	g := make([]sass.Result, len(got))
	for i, r := range got {
		if inst, ok := r.Instruction(); ok {
			g[i] = sass.Known(inst.WithoutReuse())
			continue
		}
		g[i] = r
	}
	if cmp.Equal(w, g) {
		return ""
	}
	diff := cmp.Diff(resultStrings(w), resultStrings(g))
	if diff == "" {
		// Same text, different structure.
		diff = cmp.Diff(spewConfig.Sdump(w), spewConfig.Sdump(g))
	}
	if diff == "" {
		diff = cmp.Diff(w, g)
	}
	if diff == "" {
		diff = "results differ\n"
	}
	return diff
}

func resultStrings(rs []sass.Result) []string {
	r := make([]string, len(rs))
	for i := range rs {
		r[i] = fmt.Sprintf("%#06x %s", rs[i].Offset(), rs[i])
	}
	return r
}
