package config

import (
	"strings"
	"unicode"
)

// SplitCommand splits a command line stored in the config file into its
// arguments. Like strings.Fields, but spaces inside single or double
// quotes do not split, and a backslash escapes the next character
// everywhere except inside single quotes.
func SplitCommand(in string) []string {
	var (
		r       []string
		buf     strings.Builder
		inField bool
		quote   rune
		escaped bool
	)

	for _, ch := range in {
		switch {
		case escaped:
			buf.WriteRune(ch)
			escaped = false
		case ch == '\\' && quote != '\'':
			escaped = true
			inField = true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				buf.WriteRune(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inField = true
		case unicode.IsSpace(ch):
			if inField {
				r = append(r, buf.String())
				buf.Reset()
				inField = false
			}
		default:
			buf.WriteRune(ch)
			inField = true
		}
	}

	if inField {
		r = append(r, buf.String())
	}

	return r
}
