/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Messages raised by the sqlite and mysql guard triggers.
const (
	guardOverlapMessage  = "schedule_overlap"
	guardInvertedMessage = "schedule_inverted"
)

// Postgres SQLSTATE codes.
const (
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
	pgUndefinedTable     = "42P01"
)

// MySQL error numbers.
const (
	mysqlNoSuchTable     = 1146
	mysqlSignalException = 1644
)

// Postgres evaluates the overlap rule with an exclusion constraint over
// tstzrange(starts_at, ends_at, '[)'). The gist index behind it also serves
// the range queries.
var postgresGuard = []string{
	`ALTER TABLE schedule_entries
  ADD CONSTRAINT schedule_entries_timeframe_check CHECK (ends_at > starts_at)`,
	`ALTER TABLE schedule_entries
  ADD CONSTRAINT schedule_entries_no_overlap
  EXCLUDE USING gist (tstzrange(starts_at, ends_at, '[)') WITH &&)`,
}

var sqliteGuard = []string{
	`CREATE TRIGGER trg_schedule_entries_inverted_insert
BEFORE INSERT ON schedule_entries
FOR EACH ROW
WHEN NEW.ends_at <= NEW.starts_at
BEGIN
  SELECT RAISE(ABORT, '` + guardInvertedMessage + `');
END`,
	`CREATE TRIGGER trg_schedule_entries_overlap_insert
BEFORE INSERT ON schedule_entries
FOR EACH ROW
WHEN EXISTS (
  SELECT 1 FROM schedule_entries se
  WHERE se.starts_at < NEW.ends_at AND se.ends_at > NEW.starts_at
)
BEGIN
  SELECT RAISE(ABORT, '` + guardOverlapMessage + `');
END`,
	`CREATE TRIGGER trg_schedule_entries_overlap_update
BEFORE UPDATE OF starts_at, ends_at ON schedule_entries
FOR EACH ROW
WHEN NEW.ends_at <= NEW.starts_at OR EXISTS (
  SELECT 1 FROM schedule_entries se
  WHERE se.id <> NEW.id AND se.starts_at < NEW.ends_at AND se.ends_at > NEW.starts_at
)
BEGIN
  SELECT RAISE(ABORT, '` + guardOverlapMessage + `');
END`,
}

var mysqlGuard = []string{
	`CREATE TRIGGER trg_schedule_entries_guard_insert
BEFORE INSERT ON schedule_entries
FOR EACH ROW
BEGIN
  IF NEW.ends_at <= NEW.starts_at THEN
    SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '` + guardInvertedMessage + `';
  END IF;
  IF EXISTS (
    SELECT 1 FROM schedule_entries se
    WHERE se.starts_at < NEW.ends_at AND se.ends_at > NEW.starts_at
  ) THEN
    SIGNAL SQLSTATE '45000' SET MESSAGE_TEXT = '` + guardOverlapMessage + `';
  END IF;
END`,
}

func guardStatements(dialect string) ([]string, error) {
	switch dialect {
	case "postgres":
		return postgresGuard, nil
	case "sqlite":
		return sqliteGuard, nil
	case "mysql":
		return mysqlGuard, nil
	default:
		return nil, fmt.Errorf("no overlap guard for dialect %q", dialect)
	}
}

// installGuard pushes the non-overlap invariant into the database so that
// inserts bypassing the store are still rejected.
func installGuard(tx *gorm.DB) error {
	stmts, err := guardStatements(tx.Dialector.Name())
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply %s schedule overlap guard: %w", tx.Dialector.Name(), err)
		}
	}
	return nil
}

// translateError maps driver errors onto the scheduler taxonomy. Errors
// that already carry a kind pass through unchanged.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrTimeframeUnavailable
		case pgCheckViolation:
			return ErrInvalidTimeframe
		case pgUndefinedTable:
			return ErrNotInstalled
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if kinded := fromGuardMessage(liteErr.Error()); kinded != nil {
			return kinded
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlNoSuchTable:
			return ErrNotInstalled
		case mysqlSignalException:
			if kinded := fromGuardMessage(myErr.Message); kinded != nil {
				return kinded
			}
		}
	}

	return persistenceError(op, err)
}

func fromGuardMessage(msg string) error {
	switch {
	case strings.Contains(msg, guardOverlapMessage):
		return ErrTimeframeUnavailable
	case strings.Contains(msg, guardInvertedMessage):
		return ErrInvalidTimeframe
	case strings.Contains(msg, "no such table"):
		return ErrNotInstalled
	default:
		return nil
	}
}
