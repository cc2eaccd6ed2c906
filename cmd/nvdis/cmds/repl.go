package cmds

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/gpu-uarch/nvdis/pkg/sass"
	"github.com/gpu-uarch/nvdis/pkg/terminal"
)

func replCmd(cmd *cobra.Command, args []string) error {
	out, palette, err := output(cmd)
	if err != nil {
		return err
	}
	term := terminal.New(conf, out, palette)
	if format == formatStruct {
		term.Print = func(out io.Writer, inst sass.Instruction) error {
			spewConfig.Fdump(out, inst)
			return nil
		}
	}
	status, err := term.Run()
	if err != nil {
		return err
	}
	if status != 0 {
		return errors.Errorf("repl exited with status %d", status)
	}
	return nil
}
