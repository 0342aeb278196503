// Package version holds the spall version string.
package version

// Version is the current spall version.
// Overridden at build time via -ldflags "-X github.com/spall-labs/spall/pkg/version.Version=...".
var Version = "0.3.0-dev"
