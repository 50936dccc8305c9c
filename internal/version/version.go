// Package version reports the extpath release.
package version

import "runtime/debug"

// Version is the release reported by --version and the refs report
const Version = "0.3.0"

// Commit is set at link time with -ldflags "-X github.com/standardbeagle/extpath/internal/version.Commit=<sha>".
// When empty, the VCS revision stamped by the Go toolchain is used instead.
var Commit = ""

// String is the --version text: the release, plus the revision when one is known
func String() string {
	if rev := revision(); rev != "" {
		return Version + " (" + rev + ")"
	}
	return Version
}

func revision() string {
	rev := Commit
	if rev == "" {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return ""
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				rev = s.Value
			}
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	return rev
}
