/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

func tf(h1, m1, h2, m2 int) Timeframe {
	day := time.Date(2004, 7, 23, 0, 0, 0, 0, time.UTC)
	return Timeframe{
		From: day.Add(time.Duration(h1)*time.Hour + time.Duration(m1)*time.Minute),
		To:   day.Add(time.Duration(h2)*time.Hour + time.Duration(m2)*time.Minute),
	}
}

func TestTimeframeOverlaps(t *testing.T) {
	booked := tf(10, 0, 11, 0)

	tests := []struct {
		name  string
		other Timeframe
		want  bool
	}{
		{"identical", tf(10, 0, 11, 0), true},
		{"inside", tf(10, 10, 10, 50), true},
		{"encapsulating", tf(9, 50, 11, 10), true},
		{"flowing in", tf(9, 0, 10, 10), true},
		{"flowing out", tf(10, 50, 11, 50), true},
		{"before", tf(9, 0, 9, 50), false},
		{"after", tf(11, 10, 12, 0), false},
		{"touching start", tf(9, 0, 10, 0), false},
		{"touching end", tf(11, 0, 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := booked.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps(%s) = %v, want %v", tt.other, got, tt.want)
			}
			if got := tt.other.Overlaps(booked); got != tt.want {
				t.Errorf("overlap is not symmetric for %s", tt.other)
			}
		})
	}
}

func TestNewTimeframeRejectsEmptyAndInverted(t *testing.T) {
	at := time.Date(2004, 7, 23, 10, 0, 0, 0, time.UTC)
	if _, err := NewTimeframe(at, at); !errors.Is(err, ErrInvalidTimeframe) {
		t.Errorf("empty timeframe: got %v", err)
	}
	if _, err := NewTimeframe(at, at.Add(-time.Second)); !errors.Is(err, ErrInvalidTimeframe) {
		t.Errorf("inverted timeframe: got %v", err)
	}

	local := time.FixedZone("CEST", 2*60*60)
	got, err := NewTimeframe(at.In(local), at.Add(time.Hour).In(local))
	if err != nil {
		t.Fatalf("valid timeframe: %v", err)
	}
	if got.From.Location() != time.UTC || !got.From.Equal(at) {
		t.Errorf("timeframe not normalized to UTC: %s", got.From)
	}
	if !got.Contains(at) || got.Contains(at.Add(time.Hour)) {
		t.Error("Contains must include From and exclude To")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrTimeframeUnavailable, KindInvalidArgument},
		{ErrPlaylistNotFound, KindInvalidArgument},
		{fmt.Errorf("wrapped: %w", ErrNotInstalled), KindStructural},
		{persistenceError("op", errors.New("disk full")), KindPersistence},
		{errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestExportICal(t *testing.T) {
	window := tf(9, 0, 13, 0)
	entries := []models.ScheduleEntry{
		{ID: "e1", PlaylistID: "p1", StartsAt: tf(10, 0, 11, 0).From, EndsAt: tf(10, 0, 11, 0).To},
		{ID: "e2", PlaylistID: "p2", StartsAt: tf(12, 0, 13, 0).From, EndsAt: tf(12, 0, 13, 0).To},
	}
	titles := map[string]string{"p1": "Morning, News"}

	out := ExportICal(window, entries, func(id string) string { return titles[id] }, window.From)
	body := string(out.Data)

	if strings.Count(body, "BEGIN:VEVENT") != 2 {
		t.Fatalf("expected two events:\n%s", body)
	}
	for _, want := range []string{
		"DTSTART:20040723T100000Z",
		"DTEND:20040723T110000Z",
		"SUMMARY:Morning\\, News",
		"SUMMARY:Playlist p2",
		"UID:e2@grimnir-scheduler",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q", want)
		}
	}
	if out.Filename != "schedule-20040723T0900-to-20040723T1300.ics" {
		t.Errorf("unexpected filename %q", out.Filename)
	}
}
