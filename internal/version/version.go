// Package version holds build metadata for the gqlembed CLI.
// The variables are overridden at build time via -ldflags.
package version

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

var (
	majorColor = color.New(color.FgYellow, color.Bold)
	minorColor = color.New(color.FgGreen, color.Bold)
	patchColor = color.New(color.FgBlue, color.Bold)
)

// Colored renders v with each numeric component highlighted. Anything after
// the patch number (pre-release, build) is left plain.
func Colored(v string) string {
	core, rest := v, ""
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		core, rest = v[:i], v[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return v
	}
	return majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2]) + rest
}

// Write prints the version banner followed by the optional metadata.
func Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "gqlembed %s\n", Colored(Version)); err != nil {
		return err
	}
	if GitCommit != "" {
		if _, err := fmt.Fprintf(w, "commit: %s\n", GitCommit); err != nil {
			return err
		}
	}
	if BuildDate != "" {
		if _, err := fmt.Fprintf(w, "built:  %s\n", BuildDate); err != nil {
			return err
		}
	}
	return nil
}
