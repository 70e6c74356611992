// Package version reports build information read from the binary's embedded
// module and VCS metadata.
package version

import (
	"fmt"
	"runtime"
	"time"

	"github.com/carlmjohnson/versioninfo"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	return fmt.Sprintf("poe-shim %s (commit: %s, go: %s)", Short(), versioninfo.Revision, runtime.Version())
}

// Short returns the module version, or a revision-based string for dev builds.
func Short() string {
	return versioninfo.Short()
}

// Map returns version info for JSON responses.
func Map() map[string]string {
	m := map[string]string{
		"version":    versioninfo.Version,
		"revision":   versioninfo.Revision,
		"dirty":      fmt.Sprint(versioninfo.DirtyBuild),
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
	if !versioninfo.LastCommit.IsZero() {
		m["last_commit"] = versioninfo.LastCommit.UTC().Format(time.RFC3339)
	}
	return m
}
