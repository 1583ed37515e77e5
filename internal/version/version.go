// Package version carries build identification stamped in via -ldflags.
package version

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
)

// Info is the build identification served by the status endpoint.
type Info struct {
	Version string `json:"version"`
	GitSHA  string `json:"git_sha"`
}

// Get returns the stamped build info.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA}
}
