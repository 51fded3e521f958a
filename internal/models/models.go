/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// ScheduleEntry is one committed booking of a playlist to the half-open
// timeframe [StartsAt, EndsAt).
type ScheduleEntry struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	PlaylistID string    `gorm:"type:varchar(64);not null;index" json:"playlist_id"`
	StartsAt   time.Time `gorm:"not null;precision:6;index:idx_schedule_entries_range,priority:1" json:"starts_at"`
	EndsAt     time.Time `gorm:"not null;precision:6;index:idx_schedule_entries_range,priority:2" json:"ends_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table name used by the overlap guard DDL.
func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}

// Duration returns the length of the booked timeframe.
func (e ScheduleEntry) Duration() time.Duration {
	return e.EndsAt.Sub(e.StartsAt)
}

// Playlist is the externally owned playlist record. The scheduler only
// reads its identity and play length.
type Playlist struct {
	ID           string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title        string    `gorm:"type:varchar(255)" json:"title"`
	PlaylengthMS int64     `gorm:"not null" json:"playlength_ms"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PlaylistID returns the playlist identifier.
func (p Playlist) PlaylistID() string {
	return p.ID
}

// Playlength returns the fixed play length of the playlist.
func (p Playlist) Playlength() time.Duration {
	return time.Duration(p.PlaylengthMS) * time.Millisecond
}
