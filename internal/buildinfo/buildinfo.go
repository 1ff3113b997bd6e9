// Package buildinfo exposes build metadata injected at link time via
// -ldflags "-X ...". Unset values print as N/A.
package buildinfo

import (
	"fmt"
	"io"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildData writes the build version, date and commit to w.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(buildVersion))
	fmt.Fprintf(w, "Build date: %s\n", orNA(buildDate))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(buildCommit))
}
