package terminal

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/gpu-uarch/nvdis/pkg/config"
	"github.com/gpu-uarch/nvdis/pkg/logflags"
	"github.com/gpu-uarch/nvdis/pkg/sass"
	"github.com/gpu-uarch/nvdis/pkg/sass/asm"
	"github.com/gpu-uarch/nvdis/pkg/terminal/colorize"
)

const (
	historyFile   string = ".nvdis_history"
	defaultPrompt string = "(nvdis) "
)

// Term is an interactive prompt that parses one instruction per line.
type Term struct {
	prompt  string
	line    *liner.State
	stdout  io.Writer
	palette colorize.Palette
	words   *trie.Trie

	// offset is the slot of the next instruction.
	offset uint64

	// Print writes a parsed instruction. The default prints its
	// canonical text using the palette.
	Print func(out io.Writer, inst sass.Instruction) error
}

// New returns a new Term writing to stdout.
func New(conf *config.Config, stdout io.Writer, palette colorize.Palette) *Term {
	t := newTerm(conf, stdout, palette)
	t.line = liner.NewLiner()
	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)
	return t
}

func newTerm(conf *config.Config, stdout io.Writer, palette colorize.Palette) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	prompt := conf.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	t := &Term{
		prompt:  prompt,
		stdout:  stdout,
		palette: palette,
		words:   trie.New(),
	}
	t.Print = func(out io.Writer, inst sass.Instruction) error {
		_, err := fmt.Fprintln(out, FormatInstruction(inst, t.palette))
		return err
	}
	for _, word := range completionWords() {
		t.words.Add(word, nil)
	}
	return t
}

// completionWords lists the words offered by tab completion.
func completionWords() []string {
	words := append(sass.Opcodes(), sass.SpecialRegisterNames()...)
	words = append(words, sass.RZ.String(), sass.URZ.String(), "PT")
	return words
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// complete completes the last word of line.
func (t *Term) complete(line string) (c []string) {
	i := strings.LastIndexAny(line, " \t,[@!")
	head, word := line[:i+1], line[i+1:]
	if word == "" {
		return nil
	}
	for _, s := range t.words.PrefixSearch(strings.ToUpper(word)) {
		c = append(c, head+s)
	}
	sort.Strings(c)
	return c
}

// Exec parses one line and prints the instruction. Blank lines and
// comments are ignored and do not use an instruction slot.
func (t *Term) Exec(line string) error {
	if s := strings.TrimSpace(line); s == "" || strings.HasPrefix(s, "#") {
		return nil
	}
	inst, err := asm.ParseLine(t.offset, line)
	if err != nil {
		return err
	}
	t.offset += sass.InstructionSize
	return t.Print(t.stdout, inst)
}

// Run reads lines until EOF.
func (t *Term) Run() (int, error) {
	defer t.Close()

	log := logflags.CLILogger()
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type one instruction per line, Ctrl-D to quit.")

	for {
		l, err := t.line.Prompt(t.prompt)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Fprintln(t.stdout)
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}
		if strings.TrimSpace(l) != "" {
			t.line.AppendHistory(l)
		}
		if err := t.Exec(l); err != nil {
			log.Debugf("rejected %q", l)
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return 0, nil
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
	return 0, nil
}
