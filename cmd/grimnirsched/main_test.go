/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"testing"
	"time"
)

func TestParseCLITime(t *testing.T) {
	want := time.Date(2004, 7, 23, 10, 0, 0, 0, time.UTC)
	for _, in := range []string{"2004-07-23 10:00:00", "2004-07-23T10:00:00Z", "2004-07-23T11:00:00+01:00"} {
		got, err := parseCLITime(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q = %s, want %s", in, got, want)
		}
	}
	if _, err := parseCLITime("10am"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "install": false, "uninstall": false, "status": false, "schedule": false, "entries": false, "playlist-add": false, "verify": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}
