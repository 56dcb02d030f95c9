// Package misc keeps program identity, values may be set at link time with
// -ldflags "-X tplgen/misc.version=... -X tplgen/misc.gitHash=...".
package misc

import (
	"runtime/debug"
)

const appName = "tplgen"

var (
	version = "dev"
	gitHash = ""
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	if version == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			return bi.Main.Version
		}
	}
	return version
}

// GetGitHash returns revision program was built from, "unknown" when neither
// linker nor build info provided one.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				return s.Value
			}
		}
	}
	return "unknown"
}
