// Package version exposes the build version stamped at compile time.
package version

import (
	"fmt"
	"runtime/debug"
)

// Overridable via ldflags at build time.
var (
	Version    = "dev"
	CommitHash = ""
)

// GetInfo returns the version, with a short commit hash when one is
// known (from ldflags or the embedded VCS build info).
func GetInfo() string {
	if CommitHash == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					CommitHash = setting.Value
					break
				}
			}
		}
	}

	out := Version
	if CommitHash != "" {
		hash := CommitHash
		if len(hash) > 7 {
			hash = hash[:7]
		}
		out += fmt.Sprintf(" (%s)", hash)
	}
	return out
}
