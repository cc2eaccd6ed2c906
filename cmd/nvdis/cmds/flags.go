package cmds

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	p       *string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(p *string, def string, choices ...string) *choiceValue {
	*p = def
	return &choiceValue{p: p, choices: choices}
}

func (c *choiceValue) String() string {
	if c.p == nil {
		return ""
	}
	return *c.p
}

func (c *choiceValue) Set(s string) error {
	s = strings.ToLower(s)
	for _, choice := range c.choices {
		if s == choice {
			*c.p = s
			return nil
		}
	}
	return errors.Errorf("must be one of %s", strings.Join(c.choices, ", "))
}

func (c *choiceValue) Type() string {
	return strings.Join(c.choices, "|")
}

// choiceFlag defines a flag on fs that only accepts one of choices.
func choiceFlag(fs *pflag.FlagSet, p *string, name, def, usage string, choices ...string) {
	fs.Var(newChoiceValue(p, def, choices...), name, usage)
}
