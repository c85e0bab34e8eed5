// Package version exposes the build metadata stamped into GrantScout binaries.
package version

import (
	"fmt"
	"runtime"
)

// Version, Commit and Date are overridden at build time via ldflags:
//
//	-X github.com/grantscout/grantscout/pkg/version.Version=$(VERSION)
//	-X github.com/grantscout/grantscout/pkg/version.Commit=$(COMMIT)
//	-X github.com/grantscout/grantscout/pkg/version.Date=$(DATE)
//
// A plain `go build` leaves the dev defaults in place.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"

	// GoVersion is resolved at runtime rather than stamped.
	GoVersion = runtime.Version()
)

// BuildInfo carries the full build fingerprint for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String renders the one-line human form used by `grantscout version`.
func String() string {
	return fmt.Sprintf("grantscout %s (commit %s, built %s, %s)",
		Version, Commit, Date, GoVersion)
}

// Short returns the bare version number.
func Short() string {
	return Version
}

// GetInfo assembles the current build fingerprint.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
