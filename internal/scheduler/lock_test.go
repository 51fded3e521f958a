/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background())
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	unlock()
	unlock2, err := l.Lock(context.Background())
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlock2()
}

func TestNewRedisLockerDefaults(t *testing.T) {
	l := NewRedisLocker(nil, RedisLockerConfig{}, zerolog.Nop())
	if l.config.Key != defaultLockKey || l.config.TTL != defaultLockTTL || l.config.Wait != defaultLockWait || l.config.RetryInterval != defaultLockRetry {
		t.Fatalf("unexpected defaults %+v", l.config)
	}
}

// Runs against a real Redis when GRIMNIR_SCHED_TEST_REDIS_ADDR is set.
func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	addr := os.Getenv("GRIMNIR_SCHED_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GRIMNIR_SCHED_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	cfg := RedisLockerConfig{
		Key:  "grimnir:sched:test:" + time.Now().Format("150405.000000"),
		TTL:  5 * time.Second,
		Wait: 100 * time.Millisecond,
	}
	a := NewRedisLocker(client, cfg, zerolog.Nop())
	b := NewRedisLocker(client, cfg, zerolog.Nop())

	unlock, err := a.Lock(context.Background())
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := b.Lock(context.Background()); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	unlock()

	unlockB, err := b.Lock(context.Background())
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	unlockB()
}
