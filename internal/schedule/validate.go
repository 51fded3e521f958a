/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

// Violation is one problem found by Validate.
type Violation struct {
	Kind        string    `json:"kind"` // "overlap" or "gap"
	Message     string    `json:"message"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	AffectedIDs []string  `json:"affected_ids,omitempty"`
}

// ValidationReport summarizes a timeline scan.
type ValidationReport struct {
	Timeframe  Timeframe   `json:"timeframe"`
	Entries    int         `json:"entries"`
	Overlaps   []Violation `json:"overlaps"`
	Gaps       []Violation `json:"gaps"`
	CheckedAt  time.Time   `json:"checked_at"`
	Consistent bool        `json:"consistent"`
}

// Validate scans entries already loaded for tf. Overlaps mean the
// no-overlap guarantee was broken (for example by rows written around the
// store); gaps longer than maxGap are reported for operators and never make
// the report inconsistent. A zero maxGap disables gap reporting.
func Validate(tf Timeframe, entries []models.ScheduleEntry, maxGap time.Duration, now time.Time) *ValidationReport {
	items := append([]models.ScheduleEntry(nil), entries...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartsAt.Before(items[j].StartsAt)
	})

	report := &ValidationReport{
		Timeframe: tf,
		Entries:   len(items),
		Overlaps:  []Violation{},
		Gaps:      []Violation{},
		CheckedAt: now,
	}

	for i := 0; i < len(items); i++ {
		a := Timeframe{From: items[i].StartsAt, To: items[i].EndsAt}
		for j := i + 1; j < len(items) && items[j].StartsAt.Before(a.To); j++ {
			b := Timeframe{From: items[j].StartsAt, To: items[j].EndsAt}
			if !a.Overlaps(b) {
				continue
			}
			from, to := maxTime(a.From, b.From), minTime(a.To, b.To)
			report.Overlaps = append(report.Overlaps, Violation{
				Kind:        "overlap",
				Message:     fmt.Sprintf("entries %s and %s both run from %s to %s", items[i].ID, items[j].ID, from.Format(time.RFC3339), to.Format(time.RFC3339)),
				StartsAt:    from,
				EndsAt:      to,
				AffectedIDs: []string{items[i].ID, items[j].ID},
			})
		}
	}

	if maxGap > 0 {
		cursor := tf.From
		for _, item := range items {
			if item.StartsAt.Sub(cursor) > maxGap {
				report.Gaps = append(report.Gaps, gap(cursor, item.StartsAt))
			}
			cursor = maxTime(cursor, item.EndsAt)
		}
		if tf.To.Sub(cursor) > maxGap {
			report.Gaps = append(report.Gaps, gap(cursor, tf.To))
		}
	}

	report.Consistent = len(report.Overlaps) == 0
	return report
}

func gap(from, to time.Time) Violation {
	return Violation{
		Kind:     "gap",
		Message:  fmt.Sprintf("nothing scheduled for %s from %s", to.Sub(from), from.Format(time.RFC3339)),
		StartsAt: from,
		EndsAt:   to,
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
