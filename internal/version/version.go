package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the version of the application, set by build flags
	Version = "dev"
	// Commit is the git commit hash, set by build flags
	Commit = "unknown"
	// BuildDate is the build date, set by build flags
	BuildDate = "unknown"
)

// BuildInfo is the machine-readable form of the version output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info returns version information
func Info() string {
	b := Get()
	return fmt.Sprintf("apkdeploy %s\nCommit: %s\nBuilt: %s\nGo: %s\nOS/Arch: %s",
		b.Version, b.Commit, b.BuildDate, b.GoVersion, b.Platform)
}

// Short returns short version string
func Short() string {
	return Version
}
