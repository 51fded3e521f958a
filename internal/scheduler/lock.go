/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockTimeout is returned when the schedule write lock could not be
// acquired before the wait budget ran out.
var ErrLockTimeout = errors.New("timed out waiting for schedule lock")

// Locker serializes the availability check and insert of SchedulePlaylist.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker serializes writers within one process.
type LocalLocker struct {
	sem chan struct{}
}

// NewLocalLocker creates an unlocked LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

// Lock blocks until the lock is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrLockTimeout, ctx.Err())
	}
}

const (
	defaultLockKey   = "grimnir:sched:lock:schedule"
	defaultLockTTL   = 10 * time.Second
	defaultLockWait  = 5 * time.Second
	defaultLockRetry = 25 * time.Millisecond
)

// releaseScript deletes the lease only if this holder still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLockerConfig configures a RedisLocker.
type RedisLockerConfig struct {
	// Key is the Redis key holding the lease.
	Key string

	// TTL bounds how long a crashed holder can block other instances.
	TTL time.Duration

	// Wait is the longest Lock will retry before giving up.
	Wait time.Duration

	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
}

// RedisLocker serializes writers across instances with a Redis lease.
type RedisLocker struct {
	client *redis.Client
	config RedisLockerConfig
	logger zerolog.Logger
}

// NewRedisLocker creates a locker on client, filling config defaults.
func NewRedisLocker(client *redis.Client, config RedisLockerConfig, logger zerolog.Logger) *RedisLocker {
	if config.Key == "" {
		config.Key = defaultLockKey
	}
	if config.TTL <= 0 {
		config.TTL = defaultLockTTL
	}
	if config.Wait <= 0 {
		config.Wait = defaultLockWait
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultLockRetry
	}
	return &RedisLocker{
		client: client,
		config: config,
		logger: logger.With().Str("component", "schedule_lock").Logger(),
	}
}

// Lock acquires the lease with SET NX PX, retrying until ctx is done or the
// configured wait elapses.
func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.config.Wait)
	defer cancel()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, l.config.Key, token, l.config.TTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire schedule lock: %w", err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockTimeout, waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{l.config.Key}, token).Err(); err != nil {
		l.logger.Warn().Err(err).Str("key", l.config.Key).Msg("failed to release schedule lock")
	}
}
