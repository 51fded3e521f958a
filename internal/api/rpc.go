/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type uploadPlaylistRequest struct {
	PlaylistID *flexibleID   `json:"playlistId"`
	Playtime   *flexibleTime `json:"playtime"`
}

type uploadPlaylistResponse struct {
	Result bool `json:"result"`
}

// handleUploadPlaylist keeps the boolean remote call contract: every
// failure, whatever its kind, answers {"result": false} with HTTP 200.
func (a *API) handleUploadPlaylist(w http.ResponseWriter, r *http.Request) {
	var req uploadPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.rejectUpload(w, "invalid_json", err)
		return
	}
	if req.PlaylistID == nil || *req.PlaylistID == "" {
		a.rejectUpload(w, "missing_playlist_id", nil)
		return
	}
	if req.Playtime == nil {
		a.rejectUpload(w, "missing_playtime", nil)
		return
	}

	entry, err := a.scheduler.UploadPlaylist(r.Context(), string(*req.PlaylistID), time.Time(*req.Playtime))
	if err != nil {
		_, code := errorStatus(err)
		a.rejectUpload(w, code, err)
		return
	}

	a.logger.Info().
		Str("entry_id", entry.ID).
		Str("playlist_id", entry.PlaylistID).
		Time("starts_at", entry.StartsAt).
		Msg("playlist uploaded to schedule")
	writeJSON(w, http.StatusOK, uploadPlaylistResponse{Result: true})
}

func (a *API) rejectUpload(w http.ResponseWriter, reason string, err error) {
	a.logger.Debug().Err(err).Str("reason", reason).Msg("uploadPlaylist rejected")
	writeJSON(w, http.StatusOK, uploadPlaylistResponse{Result: false})
}
