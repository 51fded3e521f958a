/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scheduler/internal/models"
)

// Migrate applies the schema owned by the process itself. The schedule
// table is not migrated here: it has an explicit install/uninstall
// lifecycle managed by the schedule store.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&models.Playlist{}); err != nil {
		return fmt.Errorf("migrate playlists: %w", err)
	}
	return nil
}
