// Package version holds build-time version metadata, set via
// -ldflags the same way the teacher's cmd/ binaries expect.
package version

var (
	version  = "dev"
	branch   = ""
	date     = ""
	revision = ""
)

// Version returns the build version string, or "dev" for a non-release build.
func Version() string { return version }

// Branch returns the build's source branch.
func Branch() string { return branch }

// Date returns the build timestamp.
func Date() string { return date }

// Revision returns the build's commit hash.
func Revision() string { return revision }
