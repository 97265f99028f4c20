// Package version holds build metadata set with -ldflags, e.g.
//
//	-X github.com/Norgate-AV/polysched/internal/version.Version=v1.2.0
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
