/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build metadata.
package version

import "runtime/debug"

// Version is the current version of Grimnir Scheduler.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_scheduler/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// Commit is the VCS revision, when the binary was built from a checkout.
var Commit = ""

// Info is reported by the CLI and the health endpoints.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// Current returns the build metadata, falling back to the module build
// info for the revision when Commit was not injected.
func Current() Info {
	info := Info{Version: Version, Commit: Commit}
	if info.Commit != "" {
		return info
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = shortRevision(s.Value)
				break
			}
		}
	}
	return info
}

// String renders "X.Y.Z" or "X.Y.Z (abcdef123456)".
func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	return i.Version + " (" + i.Commit + ")"
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
