/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule persists schedule entries and answers interval-overlap
// queries against them.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

// Store is the durable timeline of schedule entries.
type Store interface {
	Install(ctx context.Context) error
	Uninstall(ctx context.Context) error
	IsInstalled(ctx context.Context) (bool, error)
	InsertEntry(ctx context.Context, entry *models.ScheduleEntry) error
	CountOverlapping(ctx context.Context, from, to time.Time) (int64, error)
	EntriesOverlapping(ctx context.Context, from, to time.Time) ([]models.ScheduleEntry, error)
}

// GormStore keeps the schedule in a relational database via gorm.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewGormStore creates a store on top of an open connection.
func NewGormStore(db *gorm.DB, logger zerolog.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger.With().Str("component", "schedule_store").Logger(),
	}
}

// Install creates the schedule table and its overlap guard.
func (s *GormStore) Install(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Migrator().HasTable(&models.ScheduleEntry{}) {
		return ErrAlreadyInstalled
	}

	if err := db.Migrator().CreateTable(&models.ScheduleEntry{}); err != nil {
		return persistenceError("create schedule table", err)
	}
	if err := installGuard(db); err != nil {
		if dropErr := db.Migrator().DropTable(&models.ScheduleEntry{}); dropErr != nil {
			s.logger.Error().Err(dropErr).Msg("failed to roll back schedule table after guard failure")
		}
		return persistenceError("install overlap guard", err)
	}

	s.logger.Info().Str("dialect", db.Dialector.Name()).Msg("schedule installed")
	return nil
}

// Uninstall drops the schedule table, its guard and every entry.
func (s *GormStore) Uninstall(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if !db.Migrator().HasTable(&models.ScheduleEntry{}) {
		return ErrNotInstalled
	}
	if err := db.Migrator().DropTable(&models.ScheduleEntry{}); err != nil {
		return persistenceError("drop schedule table", err)
	}

	s.logger.Info().Msg("schedule uninstalled")
	return nil
}

// IsInstalled reports whether the schedule table exists.
func (s *GormStore) IsInstalled(ctx context.Context) (bool, error) {
	return s.db.WithContext(ctx).Migrator().HasTable(&models.ScheduleEntry{}), nil
}

// InsertEntry appends entry atomically. The overlap count is repeated inside
// the transaction and the database guard rejects anything that slips past it.
func (s *GormStore) InsertEntry(ctx context.Context, entry *models.ScheduleEntry) error {
	if entry == nil || entry.ID == "" {
		return fmt.Errorf("%w: schedule entry requires an id", ErrInvalidArgument)
	}
	tf, err := NewTimeframe(entry.StartsAt, entry.EndsAt)
	if err != nil {
		return err
	}
	entry.StartsAt, entry.EndsAt = tf.From, tf.To

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		if err := overlapScope(tx.Model(&models.ScheduleEntry{}), tf).Count(&overlapping).Error; err != nil {
			return err
		}
		if overlapping > 0 {
			return ErrTimeframeUnavailable
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return translateError("insert schedule entry", err)
	}

	s.logger.Debug().
		Str("entry_id", entry.ID).
		Str("playlist_id", entry.PlaylistID).
		Time("starts_at", entry.StartsAt).
		Time("ends_at", entry.EndsAt).
		Msg("schedule entry inserted")
	return nil
}

// CountOverlapping returns how many entries overlap [from, to).
func (s *GormStore) CountOverlapping(ctx context.Context, from, to time.Time) (int64, error) {
	tf, err := NewTimeframe(from, to)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := overlapScope(s.db.WithContext(ctx).Model(&models.ScheduleEntry{}), tf).Count(&count).Error; err != nil {
		return 0, translateError("count overlapping entries", err)
	}
	return count, nil
}

// EntriesOverlapping returns every entry overlapping [from, to), ordered by
// start time ascending.
func (s *GormStore) EntriesOverlapping(ctx context.Context, from, to time.Time) ([]models.ScheduleEntry, error) {
	tf, err := NewTimeframe(from, to)
	if err != nil {
		return nil, err
	}

	entries := []models.ScheduleEntry{}
	err = overlapScope(s.db.WithContext(ctx).Model(&models.ScheduleEntry{}), tf).
		Order("starts_at ASC").
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, translateError("list overlapping entries", err)
	}
	return entries, nil
}

// overlapScope is the single overlap predicate shared by count and list:
// an entry overlaps [from, to) iff starts_at < to AND ends_at > from.
func overlapScope(q *gorm.DB, tf Timeframe) *gorm.DB {
	return q.Where("starts_at < ? AND ends_at > ?", tf.To, tf.From)
}
