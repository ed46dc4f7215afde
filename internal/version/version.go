// Package version holds build metadata injected via ldflags.
package version

//nolint:revive // Overridden by -ldflags "-X ..." in release builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
