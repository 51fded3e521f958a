/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the store and the scheduler wraps
// exactly one of these.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrStructural      = errors.New("schedule structure error")
	ErrPersistence     = errors.New("schedule persistence error")
)

var (
	ErrInvalidTimeframe     = fmt.Errorf("%w: timeframe start must be before its end", ErrInvalidArgument)
	ErrTimeframeUnavailable = fmt.Errorf("%w: timeframe is not available", ErrInvalidArgument)
	ErrPlaylistNotFound     = fmt.Errorf("%w: playlist not found", ErrInvalidArgument)
	ErrNotInstalled         = fmt.Errorf("%w: schedule is not installed", ErrStructural)
	ErrAlreadyInstalled     = fmt.Errorf("%w: schedule is already installed", ErrStructural)
)

// ErrorKind classifies an error into the scheduler taxonomy.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindInvalidArgument ErrorKind = "invalid_argument"
	KindStructural      ErrorKind = "structural"
	KindPersistence     ErrorKind = "persistence"
	KindUnknown         ErrorKind = "unknown"
)

// KindOf reports which kind err belongs to.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrStructural):
		return KindStructural
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindUnknown
	}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
