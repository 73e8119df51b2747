// Package buildinfo reports the version of the running usagebar binary.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

const devVersion = "0.1.0"

// Linker-overridable build metadata.
var (
	Version    = devVersion
	CommitHash = ""
	BuildDate  = ""
)

// Info is normalized build metadata for display.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
}

// vcs holds what the Go toolchain stamped into the binary.
type vcs struct {
	revision string
	time     string
	dirty    bool
}

func readVCS() (mainVersion string, v vcs) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", v
	}
	for _, s := range bi.Settings {
		value := strings.TrimSpace(s.Value)
		switch s.Key {
		case "vcs.revision":
			v.revision = value
		case "vcs.time":
			v.time = value
		case "vcs.modified":
			v.dirty = strings.EqualFold(value, "true")
		}
	}
	return bi.Main.Version, v
}

// Current returns build metadata from linker overrides, falling back to the
// toolchain's VCS stamps.
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
		BuildDate:  strings.TrimSpace(BuildDate),
		GoVersion:  runtime.Version(),
	}

	mainVersion, stamp := readVCS()
	if (info.Version == "" || info.Version == devVersion) && mainVersion != "" && mainVersion != "(devel)" {
		info.Version = mainVersion
	}
	if info.CommitHash == "" && stamp.revision != "" {
		info.CommitHash = stamp.revision
		if stamp.dirty && !strings.HasSuffix(info.CommitHash, "-dirty") {
			info.CommitHash += "-dirty"
		}
	}
	if info.BuildDate == "" {
		info.BuildDate = stamp.time
	}
	if parsed, err := time.Parse(time.RFC3339, info.BuildDate); err == nil {
		info.BuildDate = parsed.UTC().Format("2006-01-02 15:04:05 UTC")
	}

	for _, f := range []*string{&info.Version, &info.CommitHash, &info.BuildDate} {
		if *f == "" {
			*f = "unknown"
		}
	}
	return info
}

// String is the one-line form printed by `usagebar version`.
func (i Info) String() string {
	commit := i.CommitHash
	if len(commit) > 12 && !strings.HasSuffix(commit, "-dirty") {
		commit = commit[:12]
	}
	return fmt.Sprintf("usagebar %s (commit %s, built %s, %s)", i.Version, commit, i.BuildDate, i.GoVersion)
}
