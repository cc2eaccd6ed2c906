// Package colorize defines the styles used to highlight disassembly
// listings and the palettes mapping them to terminal escape sequences.
package colorize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Style describes the style of a chunk of text.
type Style uint8

const (
	NormalStyle Style = iota
	OffsetStyle
	ControlActiveStyle
	ControlInactiveStyle
	PredicateStyle
	OpcodeStyle
	RegisterStyle
	SpecialRegisterStyle
	ImmediateStyle
	ConstantStyle
	SymbolStyle
	ErrorStyle
	FunctionStyle
)

var styleNames = map[Style]string{
	NormalStyle:          "normal",
	OffsetStyle:          "offset",
	ControlActiveStyle:   "control-active",
	ControlInactiveStyle: "control-inactive",
	PredicateStyle:       "predicate",
	OpcodeStyle:          "opcode",
	RegisterStyle:        "register",
	SpecialRegisterStyle: "special-register",
	ImmediateStyle:       "immediate",
	ConstantStyle:        "constant",
	SymbolStyle:          "symbol",
	ErrorStyle:           "error",
	FunctionStyle:        "function",
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("style(%d)", s)
}

// ParseStyle returns the style called name.
func ParseStyle(name string) (Style, bool) {
	for s, n := range styleNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

const reset = "\x1b[0m"

// Palette maps styles to escape sequences. A nil Palette disables colors.
type Palette map[Style]string

// Wrap returns text surrounded by the escape sequence for style. Styles
// without an entry fall back to NormalStyle.
func (p Palette) Wrap(style Style, text string) string {
	if p == nil {
		return text
	}
	esc := p[style]
	if esc == "" {
		esc = p[NormalStyle]
	}
	if esc == "" {
		return text
	}
	return esc + text + reset
}

// Override returns a copy of p where every style named in colors uses the
// given SGR parameters, e.g. "34" or "38;2;181;137;0".
func (p Palette) Override(colors map[string]string) (Palette, error) {
	r := make(Palette, len(p)+len(colors))
	for s, esc := range p {
		r[s] = esc
	}
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, ok := ParseStyle(name)
		if !ok {
			return nil, errors.Errorf("unknown style %q", name)
		}
		sgr := colors[name]
		for _, field := range strings.Split(sgr, ";") {
			if _, err := strconv.Atoi(field); err != nil {
				return nil, errors.Errorf("bad color %q for style %q", sgr, name)
			}
		}
		r[s] = "\x1b[" + sgr + "m"
	}
	return r, nil
}

func rgb(r, g, b uint8) string {
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b)
}

// Solarized is a palette based on the solarized color scheme.
var Solarized = Palette{
	ControlActiveStyle:   rgb(0xb5, 0x89, 0x00),
	ControlInactiveStyle: rgb(0x58, 0x6e, 0x75),
	ConstantStyle:        rgb(0xb5, 0x89, 0x00),
	ErrorStyle:           rgb(0xdc, 0x32, 0x2f),
	FunctionStyle:        "\x1b[4m",
	ImmediateStyle:       rgb(0xcb, 0x4b, 0x16),
	OffsetStyle:          rgb(0x58, 0x6e, 0x75),
	OpcodeStyle:          rgb(0xd3, 0x36, 0x82),
	PredicateStyle:       rgb(0x2a, 0xa1, 0x98),
	RegisterStyle:        rgb(0x6c, 0x71, 0xc4),
	SpecialRegisterStyle: rgb(0x85, 0x99, 0x00),
	SymbolStyle:          rgb(0x26, 0x8b, 0xd2),
}

// Theme returns the palette called name. The "none" theme is a nil palette.
func Theme(name string) (Palette, bool) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, true
	case "solarized":
		return Solarized, true
	}
	return nil, false
}
