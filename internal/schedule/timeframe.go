/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"fmt"
	"time"
)

// Timeframe is the half-open interval [From, To).
type Timeframe struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewTimeframe builds a normalized timeframe and rejects empty or inverted ones.
func NewTimeframe(from, to time.Time) (Timeframe, error) {
	tf := Timeframe{From: Normalize(from), To: Normalize(to)}
	if !tf.Valid() {
		return Timeframe{}, fmt.Errorf("%w (from=%s to=%s)", ErrInvalidTimeframe, tf.From.Format(time.RFC3339), tf.To.Format(time.RFC3339))
	}
	return tf, nil
}

// Valid reports whether From is strictly before To.
func (tf Timeframe) Valid() bool {
	return tf.From.Before(tf.To)
}

// Duration returns To - From.
func (tf Timeframe) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

// Overlaps reports whether the two timeframes share an instant.
// Touching endpoints do not overlap.
func (tf Timeframe) Overlaps(other Timeframe) bool {
	return tf.From.Before(other.To) && other.From.Before(tf.To)
}

// Contains reports whether t falls inside [From, To).
func (tf Timeframe) Contains(t time.Time) bool {
	return !t.Before(tf.From) && t.Before(tf.To)
}

func (tf Timeframe) String() string {
	return fmt.Sprintf("[%s, %s)", tf.From.Format(time.RFC3339), tf.To.Format(time.RFC3339))
}

// Normalize converts t to the representation persisted by the store:
// UTC with microsecond precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
