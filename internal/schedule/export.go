/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

// ICalExport is a rendered iCalendar document.
type ICalExport struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportICal renders entries as VEVENTs. title resolves a display name for
// a playlist id and may be nil.
func ExportICal(tf Timeframe, entries []models.ScheduleEntry, title func(playlistID string) string, now time.Time) *ICalExport {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("PRODID:-//Grimnir Scheduler//Schedule Export//EN\r\n")
	buf.WriteString("X-WR-CALNAME:Playout Schedule\r\n")
	buf.WriteString("CALSCALE:GREGORIAN\r\n")
	buf.WriteString("METHOD:PUBLISH\r\n")

	for _, entry := range entries {
		summary := "Playlist " + entry.PlaylistID
		if title != nil {
			if name := title(entry.PlaylistID); name != "" {
				summary = name
			}
		}

		buf.WriteString("BEGIN:VEVENT\r\n")
		buf.WriteString(fmt.Sprintf("UID:%s@grimnir-scheduler\r\n", entry.ID))
		buf.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", formatICalTime(now)))
		buf.WriteString(fmt.Sprintf("DTSTART:%s\r\n", formatICalTime(entry.StartsAt)))
		buf.WriteString(fmt.Sprintf("DTEND:%s\r\n", formatICalTime(entry.EndsAt)))
		buf.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICalText(summary)))
		buf.WriteString(fmt.Sprintf("X-GRIMNIR-PLAYLIST-ID:%s\r\n", escapeICalText(entry.PlaylistID)))
		buf.WriteString("END:VEVENT\r\n")
	}

	buf.WriteString("END:VCALENDAR\r\n")

	return &ICalExport{
		Data: buf.Bytes(),
		Filename: fmt.Sprintf("schedule-%s-to-%s.ics",
			tf.From.Format("20060102T1504"),
			tf.To.Format("20060102T1504")),
		ContentType: "text/calendar; charset=utf-8",
	}
}

func formatICalTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICalText(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
