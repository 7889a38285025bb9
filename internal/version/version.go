// Package version carries the gateway build identity, stamped in with
// -ldflags at release time and surfaced through /api/config.
package version

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the full build identity for logs.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
