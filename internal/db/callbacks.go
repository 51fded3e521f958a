/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scheduler/internal/telemetry"
)

const _startTime = "telemetry:start_time"

type processor interface {
	Before(name string) *gorm.Callback
	After(name string) *gorm.Callback
}

type callbackHook struct {
	operation string
	anchor    string
	processor func(*gorm.DB) processor
}

var callbackHooks = []callbackHook{
	{"query", "gorm:query", func(db *gorm.DB) processor { return db.Callback().Query() }},
	{"create", "gorm:create", func(db *gorm.DB) processor { return db.Callback().Create() }},
	{"update", "gorm:update", func(db *gorm.DB) processor { return db.Callback().Update() }},
	{"delete", "gorm:delete", func(db *gorm.DB) processor { return db.Callback().Delete() }},
	{"row", "gorm:row", func(db *gorm.DB) processor { return db.Callback().Row() }},
	{"raw", "gorm:raw", func(db *gorm.DB) processor { return db.Callback().Raw() }},
}

// RegisterCallbacks hooks query timing and error counting into every gorm
// processor.
func RegisterCallbacks(db *gorm.DB) error {
	for _, hook := range callbackHooks {
		p := hook.processor(db)
		if err := p.Before(hook.anchor).Register("telemetry:before_"+hook.operation, beforeCallback); err != nil {
			return err
		}
		if err := p.After(hook.anchor).Register("telemetry:after_"+hook.operation, afterCallback(hook.operation)); err != nil {
			return err
		}
	}
	return nil
}

func beforeCallback(db *gorm.DB) {
	db.InstanceSet(_startTime, time.Now())
}

func afterCallback(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		value, ok := db.InstanceGet(_startTime)
		if !ok {
			return
		}
		started, ok := value.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())

		if kind := errorType(db.Error); kind != "" {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, kind).Inc()
		}
	}
}

func errorType(err error) string {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "query_error"
	}
}

// UpdateConnectionMetrics refreshes the connection pool gauge.
func UpdateConnectionMetrics(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
}

// RunConnectionMetrics refreshes the pool gauge every interval until ctx is
// done.
func RunConnectionMetrics(ctx context.Context, db *gorm.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	UpdateConnectionMetrics(db)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateConnectionMetrics(db)
		}
	}
}
