package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/gpu-uarch/nvdis/pkg/terminal/colorize"
)

// Color modes accepted by Stdout.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Stdout returns the writer listings should go to and the palette to use
// with it. In ColorAuto mode the palette is only used when stdout is a
// terminal.
func Stdout(mode string, palette colorize.Palette) (io.Writer, colorize.Palette, error) {
	switch strings.ToLower(mode) {
	case ColorNever:
		return os.Stdout, nil, nil
	case ColorAlways:
		return colorable.NewColorableStdout(), palette, nil
	case "", ColorAuto:
		if !isatty.IsTerminal(os.Stdout.Fd()) || strings.ToLower(os.Getenv("TERM")) == "dumb" {
			return os.Stdout, nil, nil
		}
		return colorable.NewColorableStdout(), palette, nil
	}
	return nil, nil, errors.Errorf("unknown color mode %q", mode)
}
