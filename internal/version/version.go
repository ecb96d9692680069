// Package version provides build version information and runtime metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set via -ldflags "-X github.com/j-veylop/policy-analytics-tui/internal/version.Version=..."
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

var (
	once     sync.Once
	resolved struct{ version, commit, date string }

	// readBuildInfo is swapped in tests.
	readBuildInfo = debug.ReadBuildInfo
)

func ensureInitialized() {
	once.Do(func() {
		resolved.version, resolved.commit, resolved.date = Version, Commit, Date

		info, ok := readBuildInfo()
		if ok {
			if resolved.version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
				resolved.version = info.Main.Version
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					if resolved.commit == "" && len(s.Value) >= 7 {
						resolved.commit = s.Value[:7]
					}
				case "vcs.time":
					if resolved.date == "" {
						resolved.date = s.Value
					}
				case "vcs.modified":
					if s.Value == "true" && resolved.commit != "" && Commit == "" {
						resolved.commit += "-dirty"
					}
				}
			}
		}

		if resolved.version == "" {
			resolved.version = "dev"
		}
		if resolved.commit == "" {
			resolved.commit = "unknown"
		}
		if resolved.date == "" {
			resolved.date = "unknown"
		}
	})
}

// Reset clears the cached values so they are resolved again.
func Reset() {
	once = sync.Once{}
}

// GetVersion returns the release version, or "dev".
func GetVersion() string {
	ensureInitialized()
	return resolved.version
}

// GetCommit returns the short VCS revision.
func GetCommit() string {
	ensureInitialized()
	return resolved.commit
}

// GetDate returns the build or commit date.
func GetDate() string {
	ensureInitialized()
	return resolved.date
}

// Info returns a one-line description of the build.
func Info() string {
	ensureInitialized()
	return fmt.Sprintf("policydash %s (commit: %s, built: %s, %s, %s/%s)",
		resolved.version, resolved.commit, resolved.date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
