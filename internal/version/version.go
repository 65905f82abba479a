// Package version reports the histview build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is set at build time:
// -ldflags="-X github.com/wethinkt/go-histview/internal/version.Version=v1.0.0"
var Version = ""

// Info holds all version-related metadata.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// GetInfo returns a structured Info object.
func GetInfo(name string) Info {
	info := Info{
		Name:      name,
		Version:   Get(),
		GoVersion: runtime.Version(),
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Revision = setting.Value
			case "vcs.modified":
				info.Modified = setting.Value == "true"
			}
		}
	}
	return info
}

// Get returns the version string: the ldflags value, the module version, or
// dev-<short revision>.
func Get() string {
	if Version != "" {
		return Version
	}
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	if v := buildInfo.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, setting := range buildInfo.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return "dev-" + short(setting.Value)
		}
	}
	return "dev"
}

// String returns a one-line version summary.
func String(name string) string {
	info := GetInfo(name)
	s := fmt.Sprintf("%s version %s (%s)", name, info.Version, info.GoVersion)
	if info.Modified {
		s += " +modified"
	}
	return s
}

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
