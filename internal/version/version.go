// Package version holds the build information stamped in with -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version (e.g., v1.0.0)
	Version = "dev"

	// BuildTime is the time the binary was built
	BuildTime = "unknown"

	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info returns version information as a map
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	}
}

// String renders the version line printed by the binaries.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", binary, Version, GitCommit, BuildTime)
}
