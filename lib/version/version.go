// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time. Left unset, the
// VCS stamp the Go toolchain embeds is used instead.
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""

	// Version is the semantic version, set manually for releases.
	Version = "0.1.0-dev"
)

// Report is the structured form of the build stamp.
type Report struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildTime string `json:"build_time"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

// Current returns the build stamp of the running binary.
func Current() Report {
	report := Report{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		BuildTime: BuildTime,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		report.fillFromSettings(info.Settings)
	}
	if report.Commit == "" {
		report.Commit = "unknown"
	}
	if report.BuildTime == "" {
		report.BuildTime = "unknown"
	}
	return report
}

// fillFromSettings fills fields the linker flags left empty.
func (r *Report) fillFromSettings(settings []debug.BuildSetting) {
	stampedDirty := GitDirty != ""
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if r.Commit == "" {
				r.Commit = setting.Value
				if len(r.Commit) > 12 {
					r.Commit = r.Commit[:12]
				}
			}
		case "vcs.modified":
			if !stampedDirty {
				r.Dirty = setting.Value == "true"
			}
		case "vcs.time":
			if r.BuildTime == "" {
				r.BuildTime = setting.Value
			}
		}
	}
}

// String renders the one-line form: "0.1.0 (abc1234-dirty, 2026-...)".
func (r Report) String() string {
	dirty := ""
	if r.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", r.Version, r.Commit, dirty, r.BuildTime)
}

// Info returns the one-line version string.
func Info() string {
	return Current().String()
}

// Full returns Info plus the Go toolchain and platform.
func Full() string {
	report := Current()
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s", report, report.Go, report.Platform)
}
