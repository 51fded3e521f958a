/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist resolves playlist ids to the play length the scheduler
// books.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
	"github.com/friendsincode/grimnir_scheduler/internal/schedule"
)

// Provider looks up playlists by id.
type Provider interface {
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*models.Playlist, error)
}

// GormProvider reads playlists from the playlists table.
type GormProvider struct {
	db *gorm.DB
}

// NewGormProvider creates a provider backed by db.
func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{db: db}
}

// Get returns the playlist or schedule.ErrPlaylistNotFound.
func (p *GormProvider) Get(ctx context.Context, id string) (*models.Playlist, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: playlist id is required", schedule.ErrInvalidArgument)
	}

	var pl models.Playlist
	if err := p.db.WithContext(ctx).First(&pl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", schedule.ErrPlaylistNotFound, id)
		}
		return nil, fmt.Errorf("%w: load playlist %s: %w", schedule.ErrPersistence, id, err)
	}
	return &pl, nil
}

// Exists reports whether a playlist with id is stored.
func (p *GormProvider) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, p, id)
}

// Save creates or replaces a playlist record.
func (p *GormProvider) Save(ctx context.Context, pl *models.Playlist) error {
	if pl == nil || strings.TrimSpace(pl.ID) == "" {
		return fmt.Errorf("%w: playlist id is required", schedule.ErrInvalidArgument)
	}
	if pl.PlaylengthMS <= 0 {
		return fmt.Errorf("%w: playlist %s has no play length", schedule.ErrInvalidArgument, pl.ID)
	}
	if err := p.db.WithContext(ctx).Save(pl).Error; err != nil {
		return fmt.Errorf("%w: save playlist %s: %w", schedule.ErrPersistence, pl.ID, err)
	}
	return nil
}

func exists(ctx context.Context, p Provider, id string) (bool, error) {
	_, err := p.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, schedule.ErrPlaylistNotFound):
		return false, nil
	default:
		return false, err
	}
}
