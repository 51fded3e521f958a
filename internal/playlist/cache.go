/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

const (
	// DefaultCacheTTL bounds how stale a cached play length may be.
	DefaultCacheTTL = time.Minute

	keyPrefix = "grimnir:sched:playlist:"
)

// CachedProvider is a Redis read-through cache in front of another
// Provider. A Redis failure disables the cache and every lookup goes to the
// underlying provider from then on.
type CachedProvider struct {
	next   Provider
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.RWMutex
	disabled bool
}

// NewCachedProvider wraps next. The client is pinged once; if Redis is
// unreachable the provider starts in pass-through mode.
func NewCachedProvider(ctx context.Context, next Provider, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &CachedProvider{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "playlist_cache").Logger(),
	}

	if client == nil {
		c.disabled = true
		return c
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		c.disabled = true
	}
	return c
}

// IsAvailable returns true if the cache is operational.
func (c *CachedProvider) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled
}

// Get returns the cached playlist or loads and caches it.
func (c *CachedProvider) Get(ctx context.Context, id string) (*models.Playlist, error) {
	if pl, ok := c.lookup(ctx, id); ok {
		return pl, nil
	}

	pl, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, pl)
	return pl, nil
}

// Exists reports whether the playlist can be resolved.
func (c *CachedProvider) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, c, id)
}

// Invalidate drops the cached copy of id.
func (c *CachedProvider) Invalidate(ctx context.Context, id string) {
	if !c.IsAvailable() {
		return
	}
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		c.handleError(err, "delete")
	}
}

func (c *CachedProvider) lookup(ctx context.Context, id string) (*models.Playlist, bool) {
	if !c.IsAvailable() {
		return nil, false
	}

	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.handleError(err, "get")
		return nil, false
	}

	var pl models.Playlist
	if err := json.Unmarshal(data, &pl); err != nil {
		c.logger.Debug().Err(err).Str("playlist_id", id).Msg("failed to unmarshal cached playlist")
		return nil, false
	}
	c.logger.Debug().Str("playlist_id", id).Msg("playlist cache hit")
	return &pl, true
}

func (c *CachedProvider) store(ctx context.Context, pl *models.Playlist) {
	if !c.IsAvailable() {
		return
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, keyPrefix+pl.ID, data, c.ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}

// handleError trips the breaker on any Redis error other than a miss.
func (c *CachedProvider) handleError(err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	c.logger.Warn().Msg("disabling playlist cache due to Redis error")
}
