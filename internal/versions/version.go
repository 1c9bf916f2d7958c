// Package versions exposes the build identity of the server binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Overridden at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = unknown
	BuildDate = unknown
)

// VersionInfo is the version payload served by the version endpoint and
// the version subcommand.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo reports the running binary's version. Binaries built
// without ldflags fall back to the module's VCS stamp, so "go install"
// builds still identify themselves.
func GetVersionInfo() VersionInfo {
	return makeVersionInfo(Version, Commit, BuildDate)
}

func makeVersionInfo(version, commit, buildDate string) VersionInfo {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commit == unknown {
						commit = setting.Value
					}
				case "vcs.time":
					if buildDate == unknown {
						buildDate = setting.Value
					}
				}
			}
		}
		version = "build-" + shortCommit(commit)
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.Format("2006-01-02 15:04:05 MST")
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
