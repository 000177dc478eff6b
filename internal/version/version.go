package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X github.com/ludo-technologies/astsim/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// Build describes the running binary
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	BuiltBy   string `json:"builtBy"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build description. Without ldflags the commit and date
// fall back to the VCS stamp embedded by the go tool.
func Get() Build {
	b := Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		BuiltBy:   BuiltBy,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch {
			case s.Key == "vcs.revision" && b.Commit == "unknown":
				b.Commit = s.Value
			case s.Key == "vcs.time" && b.Date == "unknown":
				b.Date = s.Value
			}
		}
	}
	return b
}

// Info returns version information as a formatted string
func Info() string {
	b := Get()
	return fmt.Sprintf("astsim %s\nCommit: %s\nBuilt: %s by %s\nGo: %s\nOS/Arch: %s",
		b.Version, b.Commit, b.Date, b.BuiltBy, b.GoVersion, b.Platform)
}

// Short returns just the version string
func Short() string {
	return Version
}
