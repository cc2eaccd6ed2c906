// Package version reports the version of nvdis and what its decoder
// supports.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/gpu-uarch/nvdis/pkg/sass"
)

// Version represents the current version of nvdis.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	// Build is the VCS revision. "$Id$" means it is taken from the build
	// information at run time.
	Build string
}

// NvdisVersion is the current version of nvdis.
var NvdisVersion = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
	Build: "$Id$",
}

func (v Version) String() string {
	if strings.HasPrefix(v.Build, "$Id$") {
		v.Build = revision(readBuildInfo())
	}
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	if v.Build == "" {
		return ver
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.Build)
}

var readBuildInfo = debug.ReadBuildInfo

// revision returns the VCS revision recorded by the go command, with a
// "-dirty" suffix for modified trees.
func revision(info *debug.BuildInfo, ok bool) string {
	if !ok {
		return ""
	}
	var rev, modified string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
		case "vcs.modified":
			modified = setting.Value
		}
	}
	if rev != "" && modified == "true" {
		rev += "-dirty"
	}
	return rev
}

// BuildInfo returns the Go version, the module versions the binary was
// built from and the opcodes its decoder recognizes.
func BuildInfo() string {
	info, ok := readBuildInfo()
	return formatBuildInfo(runtime.Version(), info, ok, sass.Opcodes())
}

func formatBuildInfo(goVersion string, info *debug.BuildInfo, ok bool, opcodes []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Go: %s\n", goVersion)
	if !ok {
		sb.WriteString("Modules: not built in module mode\n")
	} else {
		fmt.Fprintf(&sb, "Module: %s %s\n", info.Main.Path, info.Main.Version)
		for _, dep := range info.Deps {
			if dep.Replace != nil {
				dep = dep.Replace
			}
			fmt.Fprintf(&sb, "  %s %s\n", dep.Path, dep.Version)
		}
	}
	fmt.Fprintf(&sb, "Architecture: sm_75, %d opcodes\n", len(opcodes))
	fmt.Fprintf(&sb, "  %s", strings.Join(opcodes, " "))
	return sb.String()
}
