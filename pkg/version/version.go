// Package version holds build version information.
package version

// Version is the release version, overridden at build time via
// -ldflags "-X github.com/ragline/ragline/pkg/version.Version=...".
var Version = "0.1.0-dev"
