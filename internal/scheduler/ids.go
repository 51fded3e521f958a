/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import "github.com/google/uuid"

// IDGenerator produces fresh schedule entry ids.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator issues random v4 UUIDs.
type UUIDGenerator struct{}

// NewID implements IDGenerator.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// IDFunc adapts a plain function to IDGenerator.
type IDFunc func() string

// NewID implements IDGenerator.
func (f IDFunc) NewID() string {
	return f()
}
