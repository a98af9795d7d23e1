// ABOUTME: Build version information
// ABOUTME: Overridden at link time via -ldflags
package version

// Version is the build version, set by the release process.
var Version = "0.2.0-dev"
