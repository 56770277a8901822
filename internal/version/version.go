// Package version carries the build identification stamped into the
// skycal binary via -ldflags at release time.
package version

var (
	// Version is the skycal release version.
	Version = "0.0.0-dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)
