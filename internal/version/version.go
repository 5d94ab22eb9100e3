package version

import (
	"fmt"
	"runtime/debug"
)

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/contentbuilder/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// String renders the version line printed by --version. Values missing from
// ldflags fall back to the module version and VCS settings embedded by the
// go tool.
func String() string {
	version, commit, built := Version, GitCommit, BuildTime
	if info, ok := readBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "unknown" {
					commit = shortRevision(s.Value)
				}
			case "vcs.time":
				if built == "unknown" {
					built = s.Value
				}
			}
		}
	}
	return fmt.Sprintf("contentbuilder %s (commit %s, built %s)", version, commit, built)
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
