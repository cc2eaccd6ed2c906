package main

import (
	"fmt"
	"os"

	"github.com/gpu-uarch/nvdis/cmd/nvdis/cmds"
	"github.com/gpu-uarch/nvdis/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.NvdisVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		os.Exit(1)
	}
}
