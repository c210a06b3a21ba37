package buildinfo

// Set via -ldflags, for example:
//
//	-X 'github.com/m3rciful/goroute/core/buildinfo.Version=v0.4.0'
//	-X 'github.com/m3rciful/goroute/core/buildinfo.Commit=abcdef0'
var (
	// Version is the release tag of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)

// Summary renders a short version string for health output and startup logs.
func Summary() string {
	if Date == "" {
		return Version + "+" + Commit
	}
	return Version + "+" + Commit + " (" + Date + ")"
}
