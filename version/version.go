// Package version carries the build-time version string for both binaries.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
