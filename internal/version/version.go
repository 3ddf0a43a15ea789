// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package version holds build metadata, populated via ldflags:
//
//	-X github.com/ManuGH/timeshift/internal/version.Version=v0.2.0
package version

import "fmt"

var (
	Version = "v0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata on one line.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}

// UserAgent returns the User-Agent value for outbound requests from component.
func UserAgent(component string) string {
	return "timeshift-" + component + "/" + Version
}
