// Package buildinfo reports which build of the bot is running.
package buildinfo

import "runtime/debug"

// Set with -ldflags at build time:
//
//	-X 'github.com/m3rciful/langbot/core/buildinfo.Version=v0.4.0'
//	-X 'github.com/m3rciful/langbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/langbot/core/buildinfo.Date=2025-11-02T12:00:00Z'
var (
	Version = "dev"
	Commit  = "local"
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
	Dirty   bool
}

// Current returns the ldflags values, filling commit and date from the vcs
// stamp the go tool embeds when they were not set.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "local" && s.Value != "" {
				info.Commit = short(s.Value)
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

func short(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
