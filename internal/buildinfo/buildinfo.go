// Package buildinfo carries the release identity stamped into the binary
// at link time.
package buildinfo

// Release builds set these through -ldflags. Source builds leave them
// empty and the version command falls back to module build info.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)
