/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler books playlists onto the schedule timeline without
// letting two bookings overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/grimnir_scheduler/internal/events"
	"github.com/friendsincode/grimnir_scheduler/internal/models"
	"github.com/friendsincode/grimnir_scheduler/internal/playlist"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
	"github.com/friendsincode/grimnir_scheduler/internal/telemetry"
)

// Playlist is the minimal view of a playlist the scheduler needs.
type Playlist interface {
	PlaylistID() string
	Playlength() time.Duration
}

// Service is the scheduling engine.
type Service struct {
	store     schedule.Store
	ids       IDGenerator
	locker    Locker
	bus       *events.Bus
	playlists playlist.Provider
	logger    zerolog.Logger
}

// New constructs the scheduling engine. A nil ids or locker falls back to
// UUIDs and a process-local lock; a nil bus disables event publication.
func New(store schedule.Store, ids IDGenerator, locker Locker, bus *events.Bus, logger zerolog.Logger) *Service {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Service{
		store:  store,
		ids:    ids,
		locker: locker,
		bus:    bus,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetPlaylists sets the provider used by UploadPlaylist.
func (s *Service) SetPlaylists(p playlist.Provider) {
	s.playlists = p
}

// Install creates the empty schedule.
func (s *Service) Install(ctx context.Context) (err error) {
	ctx, done := s.observe(ctx, "install")
	defer func() { done(err) }()

	if err = s.store.Install(ctx); err != nil {
		return err
	}
	s.bus.Publish(events.EventScheduleInstalled, events.Payload{"at": time.Now().UTC()})
	return nil
}

// Uninstall removes the schedule and all entries.
func (s *Service) Uninstall(ctx context.Context) (err error) {
	ctx, done := s.observe(ctx, "uninstall")
	defer func() { done(err) }()

	if err = s.store.Uninstall(ctx); err != nil {
		return err
	}
	s.bus.Publish(events.EventScheduleUninstalled, events.Payload{"at": time.Now().UTC()})
	return nil
}

// IsInstalled reports whether the schedule exists.
func (s *Service) IsInstalled(ctx context.Context) (bool, error) {
	return s.store.IsInstalled(ctx)
}

// IsTimeframeAvailable reports whether no entry overlaps [from, to).
func (s *Service) IsTimeframeAvailable(ctx context.Context, from, to time.Time) (available bool, err error) {
	ctx, done := s.observe(ctx, "availability",
		attribute.String("from", from.UTC().Format(time.RFC3339)),
		attribute.String("to", to.UTC().Format(time.RFC3339)),
	)
	defer func() { done(err) }()

	count, err := s.store.CountOverlapping(ctx, from, to)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GetScheduleEntries returns every entry overlapping [from, to), ordered by
// start time.
func (s *Service) GetScheduleEntries(ctx context.Context, from, to time.Time) (entries []models.ScheduleEntry, err error) {
	ctx, done := s.observe(ctx, "entries")
	defer func() { done(err) }()

	return s.store.EntriesOverlapping(ctx, from, to)
}

// VerifyTimeline scans [from, to) for overlapping entries and for gaps
// longer than maxGap.
func (s *Service) VerifyTimeline(ctx context.Context, from, to time.Time, maxGap time.Duration) (report *schedule.ValidationReport, err error) {
	ctx, done := s.observe(ctx, "verify")
	defer func() { done(err) }()

	tf, err := schedule.NewTimeframe(from, to)
	if err != nil {
		return nil, err
	}
	if maxGap < 0 {
		return nil, fmt.Errorf("%w: max gap must not be negative", schedule.ErrInvalidArgument)
	}
	entries, err := s.store.EntriesOverlapping(ctx, tf.From, tf.To)
	if err != nil {
		return nil, err
	}

	report = schedule.Validate(tf, entries, maxGap, time.Now().UTC())
	if !report.Consistent {
		s.logger.Error().
			Int("overlaps", len(report.Overlaps)).
			Str("timeframe", tf.String()).
			Msg("schedule timeline has overlapping entries")
	}
	return report, nil
}

// SchedulePlaylist books pl to play from start for its full play length.
// The availability check and the insert run under the schedule lock, so two
// concurrent callers can never both book overlapping time.
func (s *Service) SchedulePlaylist(ctx context.Context, pl Playlist, start time.Time) (entry *models.ScheduleEntry, err error) {
	if pl == nil || pl.PlaylistID() == "" {
		return nil, fmt.Errorf("%w: playlist is required", schedule.ErrInvalidArgument)
	}

	ctx, done := s.observe(ctx, "schedule",
		attribute.String("playlist_id", pl.PlaylistID()),
		attribute.String("starts_at", start.UTC().Format(time.RFC3339)),
	)
	defer func() { done(err) }()

	length := pl.Playlength()
	if length <= 0 {
		return nil, fmt.Errorf("%w: playlist %s has no play length", schedule.ErrInvalidArgument, pl.PlaylistID())
	}

	tf, err := schedule.NewTimeframe(start, start.Add(length))
	if err != nil {
		return nil, err
	}

	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx)
	telemetry.ScheduleLockWaitSeconds.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", schedule.ErrPersistence, err)
	}
	defer unlock()

	count, err := s.store.CountOverlapping(ctx, tf.From, tf.To)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		s.reject(pl, tf, count)
		return nil, fmt.Errorf("%w: %s overlaps %d entries", schedule.ErrTimeframeUnavailable, tf, count)
	}

	entry = &models.ScheduleEntry{
		ID:         s.ids.NewID(),
		PlaylistID: pl.PlaylistID(),
		StartsAt:   tf.From,
		EndsAt:     tf.To,
	}
	if err = s.store.InsertEntry(ctx, entry); err != nil {
		if errors.Is(err, schedule.ErrTimeframeUnavailable) {
			s.reject(pl, tf, 1)
		}
		return nil, err
	}

	telemetry.ScheduleEntriesCreatedTotal.Inc()
	s.bus.Publish(events.EventScheduleEntryCreated, events.Payload{
		"entry_id":    entry.ID,
		"playlist_id": entry.PlaylistID,
		"starts_at":   entry.StartsAt,
		"ends_at":     entry.EndsAt,
	})
	s.logger.Info().
		Str("entry_id", entry.ID).
		Str("playlist_id", entry.PlaylistID).
		Time("starts_at", entry.StartsAt).
		Time("ends_at", entry.EndsAt).
		Msg("playlist scheduled")

	return entry, nil
}

// UploadPlaylist resolves playlistID through the playlist provider and
// schedules it at playtime.
func (s *Service) UploadPlaylist(ctx context.Context, playlistID string, playtime time.Time) (*models.ScheduleEntry, error) {
	if s.playlists == nil {
		return nil, fmt.Errorf("%w: no playlist provider configured", schedule.ErrStructural)
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", schedule.ErrInvalidArgument)
	}
	if playtime.IsZero() {
		return nil, fmt.Errorf("%w: playtime is required", schedule.ErrInvalidArgument)
	}

	pl, err := s.playlists.Get(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return s.SchedulePlaylist(ctx, pl, playtime)
}

func (s *Service) reject(pl Playlist, tf schedule.Timeframe, overlapping int64) {
	s.bus.Publish(events.EventScheduleRejected, events.Payload{
		"playlist_id": pl.PlaylistID(),
		"starts_at":   tf.From,
		"ends_at":     tf.To,
		"overlapping": overlapping,
	})
	s.logger.Debug().
		Str("playlist_id", pl.PlaylistID()).
		Str("timeframe", tf.String()).
		Int64("overlapping", overlapping).
		Msg("schedule request rejected")
}

// observe starts a span for operation and returns a func recording its
// outcome, duration and error.
func (s *Service) observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "scheduler."+operation, attrs...)
	return ctx, func(err error) {
		telemetry.ScheduleOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		telemetry.ScheduleOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
		telemetry.RecordError(span, err)
		span.End()
	}
}

func outcome(err error) string {
	if errors.Is(err, schedule.ErrTimeframeUnavailable) {
		return "rejected"
	}
	switch schedule.KindOf(err) {
	case schedule.KindNone:
		return "ok"
	case schedule.KindInvalidArgument:
		return "invalid"
	case schedule.KindStructural:
		return "structural"
	default:
		return "error"
	}
}
