// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags at release time.
var (
	Version = "0.0.0-dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent to the forum, Sonarr, the torrent client and GitHub.
var UserAgent = userAgent(Version)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build details. Local builds without ldflags fall back to
// the VCS stamp the Go toolchain embeds.
func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Commit != "" && info.Date != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == "":
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.Date == "":
				info.Date = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("magnetarr %s\nCommit: %s\nBuild date: %s\nGo: %s %s\n", i.Version, commit, i.Date, i.GoVersion, i.Platform)
}

// String renders Get for the version command.
func String() string {
	return Get().String()
}

// JSON renders Get for scripts.
func JSON() ([]byte, error) {
	return json.Marshal(Get())
}

func userAgent(version string) string {
	return fmt.Sprintf("magnetarr/%s (%s %s)", version, runtime.GOOS, runtime.GOARCH)
}
