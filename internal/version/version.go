package version

// Set at build time via -ldflags "-X github.com/vidsift/vidsift/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = ""
)

// GetInfo returns the human-readable version string.
func GetInfo() string {
	if Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
