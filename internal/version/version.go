// Package version carries the build metadata stamped into the contextd
// binary via -ldflags at release time.
package version

// Defaults apply to plain `go build` binaries with no stamping.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
