// Package version reports the build identity of agentstudio.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden with -ldflags "-X github.com/soyeahso/agentstudio/internal/version.Version=..."
// (likewise Commit and Date) by release builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		Commit, Date = fromBuildInfo(bi, Commit, Date)
	}
}

// fromBuildInfo fills commit and date from the VCS stamp the go tool embeds
// in module builds.
func fromBuildInfo(bi *debug.BuildInfo, commit, date string) (string, string) {
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			date = s.Value
		}
	}
	return commit, date
}

// Info is the one-line description printed by "agentstudio version".
func Info() string {
	return fmt.Sprintf("agentstudio %s (commit: %s, built: %s, %s)", Version, short(Commit), Date, platform())
}

// UserAgent identifies agentstudio to the model API.
func UserAgent() string {
	return "agentstudio/" + Version + " (" + platform() + ")"
}

func platform() string { return runtime.GOOS + "/" + runtime.GOARCH }

func short(rev string) string {
	const n = 7
	if len(rev) <= n {
		return rev
	}
	return rev[:n]
}
